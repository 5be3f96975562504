package ports

import (
	"context"
	"route-optimizer-service/internal/domain"
)

// Ordered pair of waypoint names used as a cache key.
type NamePair struct {
	From string
	To   string
}

// Best-effort store of previously resolved legs.
type LegCache interface {
	// Return cached legs for the requested pairs; misses are simply absent.
	GetMany(ctx context.Context, pairs []NamePair) (map[NamePair]domain.PairDistance, error)
	// Store resolved legs.
	PutMany(ctx context.Context, legs map[NamePair]domain.PairDistance) error
}
