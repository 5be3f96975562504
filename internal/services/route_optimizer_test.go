package services

import (
	"context"
	"math"
	"math/rand/v2"
	"route-optimizer-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func matrixFrom(n int, fn func(i, j int) domain.PairDistance) *domain.DistanceMatrix {
	m := domain.NewDistanceMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				m.Set(domain.PairKey{From: i, To: j}, fn(i, j))
			}
		}
	}
	return m
}

func testAnnealing(seed uint64) AnnealingOptions {
	opts := DefaultAnnealingOptions()
	opts.Seed = seed
	return opts
}

func TestRouteOptimizerFindsShortestPath(t *testing.T) {
	short := map[domain.PairKey]float64{
		{From: 0, To: 2}: 3,
		{From: 2, To: 1}: 3,
		{From: 1, To: 3}: 4,
	}
	m := matrixFrom(4, func(i, j int) domain.PairDistance {
		if v, ok := short[domain.PairKey{From: i, To: j}]; ok {
			return domain.PairDistance{LengthMeters: v}
		}
		return domain.PairDistance{LengthMeters: 20}
	})

	for seed := uint64(1); seed <= 20; seed++ {
		o, err := NewRouteOptimizer(m, testAnnealing(seed), nil)
		require.NoError(t, err)

		set := optimize(t, o)
		require.Equal(t, domain.Route{0, 2, 1, 3}, set.Best.Route, "seed %d", seed)
		require.Equal(t, 10.0, set.Best.Cost, "seed %d", seed)
		require.Equal(t, set.Best, set.Top[0], "seed %d", seed)
	}
}

func TestRouteOptimizerMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	m := matrixFrom(7, func(i, j int) domain.PairDistance {
		return domain.PairDistance{LengthMeters: float64(1 + rng.IntN(1000))}
	})

	o, err := NewRouteOptimizer(m, testAnnealing(3), nil)
	require.NoError(t, err)

	best := bruteForce(o)
	set := optimize(t, o)
	require.Equal(t, best, set.Best.Cost)
}

func bruteForce(o *RouteOptimizer) float64 {
	best := -1.0
	var permute func(route domain.Route, k int)
	permute = func(route domain.Route, k int) {
		if k == len(route) {
			if c := o.routeCost(route); best < 0 || c < best {
				best = c
			}
			return
		}
		for i := k; i < len(route); i++ {
			route[k], route[i] = route[i], route[k]
			permute(route, k+1)
			route[k], route[i] = route[i], route[k]
		}
	}

	route := make(domain.Route, o.n)
	for i := range route {
		route[i] = i
	}
	permute(route, 1)
	return best
}

func TestRouteOptimizerRankedRoutes(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	m := matrixFrom(10, func(i, j int) domain.PairDistance {
		return domain.PairDistance{LengthMeters: rng.Float64() * 100}
	})

	opts := testAnnealing(9)
	// A short schedule leaves runs in different local optima.
	opts.StartTemperature = 10
	opts.EndTemperature = 1
	opts.CoolingFactor = 0.9

	o, err := NewRouteOptimizer(m, opts, nil)
	require.NoError(t, err)

	set := optimize(t, o)
	require.NotEmpty(t, set.Top)
	require.LessOrEqual(t, len(set.Top), DefaultTopRoutes)
	require.Equal(t, set.Best, set.Top[0])

	keys := map[string]struct{}{}
	for k, r := range set.Top {
		require.True(t, r.Route.Valid(10))
		require.Equal(t, 0, r.Route[0])
		require.InDelta(t, o.routeCost(r.Route), r.Cost, 1e-6)
		if k > 0 {
			require.LessOrEqual(t, set.Top[k-1].Cost, r.Cost)
		}
		keys[r.Route.Key()] = struct{}{}
	}
	require.Len(t, keys, len(set.Top))
}

func TestRouteOptimizerIsDeterministicForSeed(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	m := matrixFrom(9, func(i, j int) domain.PairDistance {
		return domain.PairDistance{LengthMeters: rng.Float64() * 100}
	})

	a, err := NewRouteOptimizer(m, testAnnealing(11), nil)
	require.NoError(t, err)
	b, err := NewRouteOptimizer(m, testAnnealing(11), nil)
	require.NoError(t, err)

	require.Equal(t, optimize(t, a), optimize(t, b))
}

func TestSwapMatchesFullCost(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	m := matrixFrom(9, func(i, j int) domain.PairDistance {
		return domain.PairDistance{LengthMeters: rng.Float64() * 1000}
	})

	o, err := NewRouteOptimizer(m, DefaultAnnealingOptions(), nil)
	require.NoError(t, err)

	route := o.initialRoute(rng)
	cost := o.routeCost(route)
	for step := 0; step < 2000; step++ {
		i, j := o.swapPositions(rng)
		cost = o.swap(route, i, j, cost)
		require.InDelta(t, o.routeCost(route), cost, 1e-6, "step %d swap %d,%d", step, i, j)
		require.Equal(t, 0, route[0])
	}
}

func TestAffectedEdges(t *testing.T) {
	edges, k := affectedEdges(1, 2, 4)
	require.Equal(t, []int{0, 1, 2}, edges[:k])

	edges, k = affectedEdges(1, 3, 4)
	require.Equal(t, []int{0, 1, 2}, edges[:k])

	edges, k = affectedEdges(2, 5, 8)
	require.Equal(t, []int{1, 2, 4, 5}, edges[:k])
}

func TestRouteOptimizerSmallInputs(t *testing.T) {
	o, err := NewRouteOptimizer(domain.NewDistanceMatrix(1), DefaultAnnealingOptions(), nil)
	require.NoError(t, err)
	set := optimize(t, o)
	require.Equal(t, domain.Route{0}, set.Best.Route)
	require.Zero(t, set.Best.Cost)

	m := matrixFrom(2, func(i, j int) domain.PairDistance {
		return domain.PairDistance{LengthMeters: float64(10 * (i + 1)), TimeSeconds: 7}
	})
	o, err = NewRouteOptimizer(m, DefaultAnnealingOptions(), nil)
	require.NoError(t, err)
	set = optimize(t, o)
	require.Equal(t, domain.Route{0, 1}, set.Best.Route)
	require.Equal(t, 10.0, set.Best.Cost)
	require.Len(t, set.Top, 1)
}

func TestRouteOptimizerTimeMetric(t *testing.T) {
	m := matrixFrom(2, func(i, j int) domain.PairDistance {
		return domain.PairDistance{LengthMeters: 1000, TimeSeconds: 90}
	})
	opts := DefaultAnnealingOptions()
	opts.Metric = CostTime

	o, err := NewRouteOptimizer(m, opts, nil)
	require.NoError(t, err)
	require.Equal(t, 90.0, optimize(t, o).Best.Cost)
}

func TestRouteOptimizerRejectsIncompleteMatrix(t *testing.T) {
	m := domain.NewDistanceMatrix(3)
	m.Set(domain.PairKey{From: 0, To: 1}, domain.PairDistance{LengthMeters: 1})

	_, err := NewRouteOptimizer(m, DefaultAnnealingOptions(), nil)
	var incomplete *IncompleteMatrixError
	require.ErrorAs(t, err, &incomplete)
	require.Len(t, incomplete.Missing, 5)
}

func TestAnnealingOptionsValidation(t *testing.T) {
	m := matrixFrom(3, func(i, j int) domain.PairDistance { return domain.PairDistance{LengthMeters: 1} })

	bad := []func(*AnnealingOptions){
		func(o *AnnealingOptions) { o.EndTemperature = o.StartTemperature },
		func(o *AnnealingOptions) { o.CoolingFactor = 1 },
		func(o *AnnealingOptions) { o.CoolingFactor = 0 },
		func(o *AnnealingOptions) { o.Runs = 0 },
		func(o *AnnealingOptions) { o.TopRoutes = 0 },
		func(o *AnnealingOptions) { o.StartTemperature = -1 },
		func(o *AnnealingOptions) { o.Metric = "fuel" },
		func(o *AnnealingOptions) { o.MaxSteps = -1 },
		func(o *AnnealingOptions) { o.CoolingFactor = 0.99999; o.EndTemperature = 1e-300 },
	}

	for k, mutate := range bad {
		opts := DefaultAnnealingOptions()
		mutate(&opts)
		_, err := NewRouteOptimizer(m, opts, nil)
		require.ErrorIs(t, err, ErrInvalidAnnealingOptions, "case %d", k)
	}
}

func TestAnnealingOptionsSteps(t *testing.T) {
	opts := DefaultAnnealingOptions()
	perRun := math.Ceil(math.Log(DefaultStartTemperature/DefaultEndTemperature) / -math.Log(DefaultCoolingFactor))
	require.Equal(t, perRun*15, opts.Steps())
	require.NoError(t, opts.Validate())

	opts.MaxSteps = int64(perRun*15) - 1
	require.ErrorIs(t, opts.Validate(), ErrInvalidAnnealingOptions)

	// Unbounded when no ceiling is set.
	opts.MaxSteps = 0
	opts.CoolingFactor = 0.99999
	require.NoError(t, opts.Validate())
}

func TestRouteOptimizerStopsOnCancel(t *testing.T) {
	m := matrixFrom(6, func(i, j int) domain.PairDistance { return domain.PairDistance{LengthMeters: float64(i + j)} })

	// Billions of steps per run if left alone.
	opts := testAnnealing(5)
	opts.MaxSteps = 0
	opts.CoolingFactor = 0.9999999
	opts.EndTemperature = 1e-300
	opts.Runs = 4

	o, err := NewRouteOptimizer(m, opts, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = o.Optimize(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRankRoutes(t *testing.T) {
	results := []domain.RankedRoute{
		{Route: domain.Route{0, 2, 1}, Cost: 7},
		{Route: domain.Route{0, 1, 2}, Cost: 5},
		{Route: domain.Route{0, 2, 1}, Cost: 7},
		{Route: domain.Route{0, 1, 3, 2}, Cost: 5},
	}

	set := rankRoutes(results, 5)
	require.Len(t, set.Top, 3)
	require.Equal(t, domain.Route{0, 1, 2}, set.Best.Route)
	// Equal costs keep run order.
	require.Equal(t, domain.Route{0, 1, 3, 2}, set.Top[1].Route)

	set = rankRoutes(results, 1)
	require.Len(t, set.Top, 1)
}
