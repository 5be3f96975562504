package distance

import (
	"context"
	"fmt"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/ports"
	"sync/atomic"
)

type MockPair struct {
	From, To string
	Meters   float64
	Seconds  float64
}

// MockOracle answers from a fixed pair table. Any call that routes through a
// waypoint listed in Fail returns an error.
type MockOracle struct {
	m     map[ports.NamePair]domain.PairDistance
	fail  map[string]struct{}
	calls atomic.Int64
}

func NewMockOracle(pairs []MockPair, fail ...string) *MockOracle {
	m := make(map[ports.NamePair]domain.PairDistance, len(pairs))
	for _, p := range pairs {
		m[ports.NamePair{From: p.From, To: p.To}] = domain.PairDistance{LengthMeters: p.Meters, TimeSeconds: p.Seconds}
	}

	f := make(map[string]struct{}, len(fail))
	for _, name := range fail {
		f[name] = struct{}{}
	}
	return &MockOracle{m: m, fail: f}
}

// Calls reports how many times PathLegs has been invoked.
func (o *MockOracle) Calls() int64 { return o.calls.Load() }

func (o *MockOracle) PathLegs(ctx context.Context, waypoints []string) ([]domain.PairDistance, error) {
	o.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, w := range waypoints {
		if _, ok := o.fail[w]; ok {
			return nil, fmt.Errorf("cannot route through %q", w)
		}
	}

	legs := make([]domain.PairDistance, 0, len(waypoints)-1)
	for k := 0; k+1 < len(waypoints); k++ {
		d, ok := o.m[ports.NamePair{From: waypoints[k], To: waypoints[k+1]}]
		if !ok {
			return nil, fmt.Errorf("missing pair %q -> %q", waypoints[k], waypoints[k+1])
		}
		legs = append(legs, d)
	}
	return legs, nil
}
