package services

import (
	"context"
	"fmt"
	"route-optimizer-service/internal/adapters/distance"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/ports"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func optimize(t *testing.T, o *RouteOptimizer) domain.RankedRouteSet {
	t.Helper()
	set, err := o.Optimize(context.Background())
	require.NoError(t, err)
	return set
}

// pairTable builds mock pairs for every ordered pair of names from fn.
func pairTable(names []string, fn func(i, j int) float64) []distance.MockPair {
	var pairs []distance.MockPair
	for i := range names {
		for j := range names {
			if i == j {
				continue
			}
			v := fn(i, j)
			pairs = append(pairs, distance.MockPair{From: names[i], To: names[j], Meters: v, Seconds: v / 10})
		}
	}
	return pairs
}

func testWaypoints(t *testing.T, names ...string) []domain.Waypoint {
	t.Helper()
	w, err := domain.NewWaypoints(names, make([]int, len(names)))
	require.NoError(t, err)
	return w
}

func namesN(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("W%02d", i)
	}
	return names
}

// gatedOracle parks every call until the test releases its gate.
type gatedOracle struct {
	next    ports.RoutingOracle
	arrived chan chan struct{}
}

func newGatedOracle(next ports.RoutingOracle, calls int) *gatedOracle {
	return &gatedOracle{next: next, arrived: make(chan chan struct{}, calls)}
}

func (g *gatedOracle) PathLegs(ctx context.Context, waypoints []string) ([]domain.PairDistance, error) {
	gate := make(chan struct{})
	g.arrived <- gate

	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.next.PathLegs(ctx, waypoints)
}

// sequenceFailOracle fails calls whose waypoint sequence equals one of fail.
type sequenceFailOracle struct {
	next ports.RoutingOracle
	fail [][]string
}

func (o *sequenceFailOracle) PathLegs(ctx context.Context, waypoints []string) ([]domain.PairDistance, error) {
	for _, f := range o.fail {
		if slices.Equal(f, waypoints) {
			return nil, fmt.Errorf("upstream refused %v", waypoints)
		}
	}
	return o.next.PathLegs(ctx, waypoints)
}
