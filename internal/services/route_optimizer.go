package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/metrics"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStartTemperature = 1e10
	DefaultEndTemperature   = 1e-5
	DefaultCoolingFactor    = 0.99
	DefaultRuns             = 15
	DefaultTopRoutes        = 5
	DefaultMaxSteps         = 10_000_000
)

// Annealing runs check for cancellation every this many steps.
const cancelCheckInterval = 1 << 12

// CostMetric selects which pair measure a route's cost sums.
type CostMetric string

const (
	CostLength CostMetric = "length"
	CostTime   CostMetric = "time"
)

var ErrInvalidAnnealingOptions = errors.New("invalid annealing options")

// IncompleteMatrixError is returned when a matrix lacks pairs a route could visit.
type IncompleteMatrixError struct {
	Missing []domain.PairKey
}

func (e *IncompleteMatrixError) Error() string {
	return fmt.Sprintf("distance matrix is missing %d pairs", len(e.Missing))
}

type AnnealingOptions struct {
	StartTemperature float64
	EndTemperature   float64
	CoolingFactor    float64
	// Independent annealing runs.
	Runs int
	// Runs executed concurrently. Zero means GOMAXPROCS.
	Parallelism int
	// Number of distinct routes kept in the ranking.
	TopRoutes int
	Metric    CostMetric
	// Base seed for the per-run random streams. Zero draws a random seed.
	Seed uint64
	// Ceiling on Steps() across all runs. Zero means unbounded.
	MaxSteps int64
}

func DefaultAnnealingOptions() AnnealingOptions {
	return AnnealingOptions{
		StartTemperature: DefaultStartTemperature,
		EndTemperature:   DefaultEndTemperature,
		CoolingFactor:    DefaultCoolingFactor,
		Runs:             DefaultRuns,
		TopRoutes:        DefaultTopRoutes,
		Metric:           CostLength,
		MaxSteps:         DefaultMaxSteps,
	}
}

// Steps is the total number of annealing steps across all runs: each run cools
// from StartTemperature to EndTemperature by CoolingFactor per step.
// Options that do not cool return +Inf.
func (o AnnealingOptions) Steps() float64 {
	if o.StartTemperature <= o.EndTemperature || o.EndTemperature <= 0 {
		return 0
	}
	if o.CoolingFactor <= 0 || o.CoolingFactor >= 1 {
		return math.Inf(1)
	}
	perRun := math.Ceil(math.Log(o.StartTemperature/o.EndTemperature) / -math.Log(o.CoolingFactor))
	return perRun * float64(max(o.Runs, 0))
}

// Validate reports options the optimizer cannot run with, wrapping
// ErrInvalidAnnealingOptions.
func (o AnnealingOptions) Validate() error {
	switch {
	case o.StartTemperature <= 0 || o.EndTemperature <= 0:
		return fmt.Errorf("%w: temperatures must be positive", ErrInvalidAnnealingOptions)
	case o.EndTemperature >= o.StartTemperature:
		return fmt.Errorf("%w: end temperature %g must be below start temperature %g", ErrInvalidAnnealingOptions, o.EndTemperature, o.StartTemperature)
	case o.CoolingFactor <= 0 || o.CoolingFactor >= 1:
		return fmt.Errorf("%w: cooling factor %g must be in (0, 1)", ErrInvalidAnnealingOptions, o.CoolingFactor)
	case o.Runs < 1:
		return fmt.Errorf("%w: runs must be at least 1", ErrInvalidAnnealingOptions)
	case o.TopRoutes < 1:
		return fmt.Errorf("%w: top routes must be at least 1", ErrInvalidAnnealingOptions)
	case o.Parallelism < 0:
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalidAnnealingOptions)
	case o.Metric != CostLength && o.Metric != CostTime:
		return fmt.Errorf("%w: unknown cost metric %q", ErrInvalidAnnealingOptions, o.Metric)
	case o.MaxSteps < 0:
		return fmt.Errorf("%w: max steps must not be negative", ErrInvalidAnnealingOptions)
	case o.MaxSteps > 0 && o.Steps() > float64(o.MaxSteps):
		return fmt.Errorf("%w: %.0f annealing steps exceed the limit of %d", ErrInvalidAnnealingOptions, o.Steps(), o.MaxSteps)
	}
	return nil
}

// RouteOptimizer searches for a low-cost open path from the origin through
// every waypoint using repeated simulated annealing.
//
// It is safe to call Optimize concurrently; the optimizer holds no mutable state.
type RouteOptimizer struct {
	n    int
	cost [][]float64
	opts AnnealingOptions
	log  *zap.Logger
}

// NewRouteOptimizer builds the cost lookup from a complete matrix. A matrix
// missing any pair is rejected with *IncompleteMatrixError.
func NewRouteOptimizer(matrix *domain.DistanceMatrix, opts AnnealingOptions, log *zap.Logger) (*RouteOptimizer, error) {
	if matrix == nil || matrix.Size() == 0 {
		return nil, fmt.Errorf("new route optimizer: %w", ErrNoWaypoints)
	}

	if opts.Metric == "" {
		opts.Metric = CostLength
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("new route optimizer: %w", err)
	}

	if !matrix.Complete() {
		return nil, fmt.Errorf("new route optimizer: %w", &IncompleteMatrixError{Missing: matrix.Missing()})
	}

	if log == nil {
		log = zap.NewNop()
	}

	n := matrix.Size()
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			if i == j {
				continue
			}
			d, _ := matrix.Get(i, j)
			if opts.Metric == CostTime {
				cost[i][j] = d.TimeSeconds
			} else {
				cost[i][j] = d.LengthMeters
			}
		}
	}

	return &RouteOptimizer{n: n, cost: cost, opts: opts, log: log}, nil
}

// Optimize runs every annealing run and ranks the per-run bests. Runs stop
// early with ctx's error once ctx is done.
func (o *RouteOptimizer) Optimize(ctx context.Context) (domain.RankedRouteSet, error) {
	if o.n <= 2 {
		// Only one route exists; there is nothing to search.
		r := make(domain.Route, o.n)
		for i := range r {
			r[i] = i
		}
		best := domain.RankedRoute{Route: r, Cost: o.routeCost(r)}
		return domain.RankedRouteSet{Best: best, Top: []domain.RankedRoute{best}}, nil
	}

	seed := o.opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	limit := o.opts.Parallelism
	if limit == 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]domain.RankedRoute, o.opts.Runs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for run := 0; run < o.opts.Runs; run++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seed, uint64(run)))
			start := time.Now()
			best, err := o.anneal(gctx, rng)
			if err != nil {
				return err
			}
			results[run] = best
			metrics.AnnealingRunDuration.Observe(time.Since(start).Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.RankedRouteSet{}, fmt.Errorf("optimize route: %w", err)
	}

	set := rankRoutes(results, o.opts.TopRoutes)
	o.log.Info("route optimization finished",
		zap.Int("waypoints", o.n),
		zap.Int("runs", o.opts.Runs),
		zap.Int("distinct", len(set.Top)),
		zap.Float64("best_cost", set.Best.Cost),
	)
	return set, nil
}

// anneal performs one simulated annealing run and returns the best route it saw.
func (o *RouteOptimizer) anneal(ctx context.Context, rng *rand.Rand) (domain.RankedRoute, error) {
	route := o.initialRoute(rng)
	cost := o.routeCost(route)

	best := domain.RankedRoute{Route: route.Clone(), Cost: cost}

	for step, t := 0, o.opts.StartTemperature; t > o.opts.EndTemperature; step, t = step+1, t*o.opts.CoolingFactor {
		if step%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return domain.RankedRoute{}, err
			}
		}

		i, j := o.swapPositions(rng)
		next := o.swap(route, i, j, cost)

		// Metropolis: improvements always pass, regressions with exp(delta/T).
		delta := cost - next
		if delta > 0 || math.Exp(delta/t) > rng.Float64() {
			cost = next
			if cost < best.Cost {
				best = domain.RankedRoute{Route: route.Clone(), Cost: cost}
			}
			continue
		}

		// Rejected: undo the swap.
		route[i], route[j] = route[j], route[i]
	}

	return best, nil
}

// initialRoute keeps the origin first and shuffles the rest.
func (o *RouteOptimizer) initialRoute(rng *rand.Rand) domain.Route {
	route := make(domain.Route, o.n)
	for i := range route {
		route[i] = i
	}
	rest := route[1:]
	rng.Shuffle(len(rest), func(a, b int) { rest[a], rest[b] = rest[b], rest[a] })
	return route
}

// swapPositions draws two distinct positions from 1..n-1.
func (o *RouteOptimizer) swapPositions(rng *rand.Rand) (int, int) {
	i := 1 + rng.IntN(o.n-1)
	j := 1 + rng.IntN(o.n-1)
	for j == i {
		j = 1 + rng.IntN(o.n-1)
	}
	return i, j
}

// swap exchanges positions i and j of route in place and returns the new total
// cost, adjusting only the edges incident to the two positions.
func (o *RouteOptimizer) swap(route domain.Route, i, j int, cost float64) float64 {
	edges, k := affectedEdges(i, j, len(route))

	for _, e := range edges[:k] {
		cost -= o.cost[route[e]][route[e+1]]
	}

	route[i], route[j] = route[j], route[i]

	for _, e := range edges[:k] {
		cost += o.cost[route[e]][route[e+1]]
	}
	return cost
}

// affectedEdges lists, without duplicates, the start positions e of edges
// (e, e+1) touching position i or j in a route of length n.
func affectedEdges(i, j, n int) ([4]int, int) {
	var edges [4]int
	k := 0

	add := func(e int) {
		if e < 0 || e+1 >= n {
			return
		}
		for _, seen := range edges[:k] {
			if seen == e {
				return
			}
		}
		edges[k] = e
		k++
	}

	add(i - 1)
	add(i)
	add(j - 1)
	add(j)
	return edges, k
}

func (o *RouteOptimizer) routeCost(route domain.Route) float64 {
	total := 0.0
	for k := 0; k+1 < len(route); k++ {
		total += o.cost[route[k]][route[k+1]]
	}
	return total
}

// rankRoutes picks the global best and up to top distinct routes by ascending
// cost. Ties keep run order.
func rankRoutes(results []domain.RankedRoute, top int) domain.RankedRouteSet {
	seen := make(map[string]struct{}, len(results))
	pool := make([]domain.RankedRoute, 0, len(results))
	for _, r := range results {
		key := r.Route.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pool = append(pool, r)
	}

	slices.SortStableFunc(pool, func(a, b domain.RankedRoute) int {
		switch {
		case a.Cost < b.Cost:
			return -1
		case a.Cost > b.Cost:
			return 1
		}
		return 0
	})

	if len(pool) > top {
		pool = pool[:top]
	}

	set := domain.RankedRouteSet{Top: pool}
	if len(pool) > 0 {
		set.Best = pool[0]
	}
	return set
}
