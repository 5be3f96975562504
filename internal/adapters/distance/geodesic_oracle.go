package distance

import (
	"context"
	"fmt"
	"route-optimizer-service/internal/domain"

	"github.com/golang/geo/s2"
)

// Mean earth radius in meters.
const earthRadiusMeters = 6371008.8

const DefaultGeodesicSpeedKPH = 50.0

// GeodesicOracle routes along great circles between "lat,lon" waypoints.
// Travel time assumes a constant speed. It needs no network and serves
// offline deployments and tests.
type GeodesicOracle struct {
	metersPerSecond float64
}

func NewGeodesicOracle(speedKPH float64) (*GeodesicOracle, error) {
	if speedKPH == 0 {
		speedKPH = DefaultGeodesicSpeedKPH
	}
	if speedKPH < 0 {
		return nil, fmt.Errorf("new geodesic oracle: speed %g must be positive", speedKPH)
	}
	return &GeodesicOracle{metersPerSecond: speedKPH * 1000 / 3600}, nil
}

func (o *GeodesicOracle) PathLegs(ctx context.Context, waypoints []string) ([]domain.PairDistance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(waypoints) < 2 {
		return nil, fmt.Errorf("path legs: need at least 2 waypoints, got %d", len(waypoints))
	}

	points := make([]s2.LatLng, len(waypoints))
	for i, w := range waypoints {
		c, err := domain.ParseCoordinates(w)
		if err != nil {
			return nil, fmt.Errorf("path legs: %w", err)
		}
		points[i] = s2.LatLngFromDegrees(c.Lat, c.Lon)
	}

	legs := make([]domain.PairDistance, len(points)-1)
	for k := range legs {
		meters := points[k].Distance(points[k+1]).Radians() * earthRadiusMeters
		legs[k] = domain.PairDistance{
			LengthMeters: meters,
			TimeSeconds:  meters / o.metersPerSecond,
		}
	}
	return legs, nil
}
