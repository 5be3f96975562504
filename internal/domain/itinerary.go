package domain

import (
	"errors"
	"fmt"
)

// Represents a single leg of an itinerary.
// A leg ends at a waypoint where the traveller stops for StopSeconds before
// continuing.
type ItineraryLeg struct {
	From         Waypoint
	To           Waypoint
	LengthMeters float64
	DriveSeconds float64
	StopSeconds  float64
}

// Represents the presentable form of a route.
// TotalSeconds includes both drive time and stop time at every visited
// waypoint after the origin. It is immutable planning data.
type Itinerary struct {
	Route             Route
	Cost              float64
	Legs              []ItineraryLeg
	TotalLengthMeters float64
	TotalSeconds      float64
}

// Expand a ranked route into legs using the resolved pair distances.
func BuildItinerary(ranked RankedRoute, waypoints []Waypoint, matrix *DistanceMatrix) (Itinerary, error) {
	if matrix == nil {
		return Itinerary{}, errors.New("build itinerary: matrix must be non-nil")
	}

	if !ranked.Route.Valid(len(waypoints)) {
		return Itinerary{}, fmt.Errorf("build itinerary: route %s is not a valid route over %d waypoints", ranked.Route.Key(), len(waypoints))
	}

	it := Itinerary{
		Route: ranked.Route.Clone(),
		Cost:  ranked.Cost,
		Legs:  make([]ItineraryLeg, 0, len(ranked.Route)-1),
	}

	for k := 1; k < len(ranked.Route); k++ {
		from := waypoints[ranked.Route[k-1]]
		to := waypoints[ranked.Route[k]]

		d, ok := matrix.Get(from.Index, to.Index)
		if !ok {
			return Itinerary{}, fmt.Errorf("build itinerary: missing distance from %q to %q", from.Name, to.Name)
		}

		leg := ItineraryLeg{
			From:         from,
			To:           to,
			LengthMeters: d.LengthMeters,
			DriveSeconds: d.TimeSeconds,
			StopSeconds:  float64(to.StopMinutes * 60),
		}

		it.Legs = append(it.Legs, leg)
		it.TotalLengthMeters += leg.LengthMeters
		it.TotalSeconds += leg.DriveSeconds + leg.StopSeconds
	}

	return it, nil
}
