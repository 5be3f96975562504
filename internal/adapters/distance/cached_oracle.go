package distance

import (
	"context"
	"fmt"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/metrics"
	"route-optimizer-service/internal/ports"

	"go.uber.org/zap"
)

// CachedOracle answers a call from a LegCache when every leg of the path is
// cached and otherwise delegates to the wrapped oracle, storing what it
// returns. Cache errors never fail a call.
type CachedOracle struct {
	next  ports.RoutingOracle
	cache ports.LegCache
	log   *zap.Logger
}

func NewCachedOracle(next ports.RoutingOracle, cache ports.LegCache, log *zap.Logger) *CachedOracle {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedOracle{next: next, cache: cache, log: log}
}

func (o *CachedOracle) PathLegs(ctx context.Context, waypoints []string) ([]domain.PairDistance, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("path legs: need at least 2 waypoints, got %d", len(waypoints))
	}

	pairs := make([]ports.NamePair, len(waypoints)-1)
	for k := range pairs {
		pairs[k] = ports.NamePair{From: waypoints[k], To: waypoints[k+1]}
	}

	hits, err := o.cache.GetMany(ctx, pairs)
	if err != nil {
		o.log.Warn("leg cache read failed", zap.Error(err))
	}

	if legs, ok := fromCache(pairs, hits); ok {
		metrics.LegCacheLookups.WithLabelValues("hit").Inc()
		return legs, nil
	}
	metrics.LegCacheLookups.WithLabelValues("miss").Inc()

	legs, err := o.next.PathLegs(ctx, waypoints)
	if err != nil {
		return nil, err
	}

	if len(legs) == len(pairs) {
		fresh := make(map[ports.NamePair]domain.PairDistance, len(pairs))
		for k, p := range pairs {
			fresh[p] = legs[k]
		}
		if err := o.cache.PutMany(ctx, fresh); err != nil {
			o.log.Warn("leg cache write failed", zap.Error(err))
		}
	}

	return legs, nil
}

func fromCache(pairs []ports.NamePair, hits map[ports.NamePair]domain.PairDistance) ([]domain.PairDistance, bool) {
	if len(hits) == 0 {
		return nil, false
	}

	legs := make([]domain.PairDistance, len(pairs))
	for k, p := range pairs {
		d, ok := hits[p]
		if !ok {
			return nil, false
		}
		legs[k] = d
	}
	return legs, true
}
