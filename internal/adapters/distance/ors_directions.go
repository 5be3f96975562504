package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"route-optimizer-service/internal/domain"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Segments []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"segments"`
	} `json:"routes"`
}

// fetchDirections requests a single route through path from the
// OpenRouteService directions endpoint and returns its segments.
func (o *ORSRoutingOracle) fetchDirections(
	ctx context.Context,
	path []domain.Coordinates,
) ([]domain.PairDistance, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s/json", o.baseURL, o.profile)

	locations := make([][]float64, 0, len(path))
	for _, c := range path {
		locations = append(locations, c.CoordsToList())
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: locations})
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		body := bytes.NewReader(payload)
		return o.newRequest(ctx, http.MethodPost, endpoint, body)
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Routes) != 1 {
		return nil, fmt.Errorf("expected 1 route; got %d", len(dr.Routes))
	}

	segments := dr.Routes[0].Segments
	if len(segments) != len(path)-1 {
		return nil, fmt.Errorf(
			"segment count does not match path: segments=%d waypoints=%d",
			len(segments), len(path),
		)
	}

	legs := make([]domain.PairDistance, len(segments))
	for i, s := range segments {
		legs[i] = domain.PairDistance{LengthMeters: s.Distance, TimeSeconds: s.Duration}
	}
	return legs, nil
}
