package ports

import (
	"context"
	"route-optimizer-service/internal/domain"
)

// Contract for the external routing service.
//
// PathLegs routes through the given waypoints in order and returns one
// PairDistance per consecutive pair: exactly len(waypoints)-1 legs, in input
// order. On failure it returns an error and no partial data.
type RoutingOracle interface {
	PathLegs(ctx context.Context, waypoints []string) ([]domain.PairDistance, error)
}
