package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/metrics"
	"route-optimizer-service/internal/ports"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFailureDebounce is how long the builder waits after the first failed
// batch before reporting unresolved waypoints.
const DefaultFailureDebounce = 5 * time.Second

var (
	ErrNoCompletionHandler      = errors.New("completion handler must be registered before start")
	ErrHandlerAlreadyRegistered = errors.New("handler already registered")
	ErrBuilderStarted           = errors.New("matrix builder already started")
)

type BuilderOptions struct {
	// Most waypoints per oracle call. Zero means DefaultBatchSize.
	BatchSize int
	// Delay between the first failed batch and the failure report. Zero means DefaultFailureDebounce.
	DebounceDelay time.Duration
	// Upper bound on concurrent oracle calls. Zero dispatches every batch at once.
	MaxInFlight int
}

type batchOutcome struct {
	batch BatchQuery
	legs  []domain.PairDistance
	err   error
}

// MatrixBuilder assembles the pairwise distance matrix for a waypoint set.
//
// Usage is two-phase: register handlers with OnComplete (required) and
// OnFailure (optional), then Start. Start returns immediately; every batch is
// dispatched concurrently and a single aggregation goroutine owns the matrix,
// so handlers run on that goroutine and must not block for long.
//
// The completion handler fires at most once, exactly when all N²−N pairs are
// resolved. The failure handler fires at most once, after the debounce delay
// that follows the first failed batch, and only if coverage is still
// incomplete and some failed waypoint was never resolved by another batch.
type MatrixBuilder struct {
	oracle    ports.RoutingOracle
	waypoints []domain.Waypoint
	batches   []BatchQuery
	opts      BuilderOptions
	log       *zap.Logger

	mu         sync.Mutex
	onComplete func(*domain.DistanceMatrix)
	onFailure  func(domain.FailureReport)
	started    bool
	done       chan struct{}
}

func NewMatrixBuilder(
	oracle ports.RoutingOracle,
	waypoints []domain.Waypoint,
	opts BuilderOptions,
	log *zap.Logger,
) (*MatrixBuilder, error) {
	if oracle == nil {
		return nil, errors.New("new matrix builder: oracle must be non-nil")
	}

	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.DebounceDelay == 0 {
		opts.DebounceDelay = DefaultFailureDebounce
	}
	if opts.DebounceDelay < 0 || opts.MaxInFlight < 0 {
		return nil, errors.New("new matrix builder: debounce delay and max in flight must not be negative")
	}

	if log == nil {
		log = zap.NewNop()
	}

	batches, err := PartitionBatches(len(waypoints), opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("new matrix builder: %w", err)
	}

	return &MatrixBuilder{
		oracle:    oracle,
		waypoints: waypoints,
		batches:   batches,
		opts:      opts,
		log:       log,
		done:      make(chan struct{}),
	}, nil
}

// Batches returns the oracle calls the builder will make.
func (b *MatrixBuilder) Batches() []BatchQuery { return b.batches }

// Done is closed once aggregation has ended, whether by completion, failure
// debounce, exhaustion of all batches, or context cancellation.
func (b *MatrixBuilder) Done() <-chan struct{} { return b.done }

// Register the terminal completion handler.
func (b *MatrixBuilder) OnComplete(fn func(*domain.DistanceMatrix)) error {
	if fn == nil {
		return errors.New("on complete: handler must be non-nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("on complete: %w", ErrBuilderStarted)
	}
	if b.onComplete != nil {
		return fmt.Errorf("on complete: %w", ErrHandlerAlreadyRegistered)
	}

	b.onComplete = fn
	return nil
}

// Register the failure report handler.
func (b *MatrixBuilder) OnFailure(fn func(domain.FailureReport)) error {
	if fn == nil {
		return errors.New("on failure: handler must be non-nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("on failure: %w", ErrBuilderStarted)
	}
	if b.onFailure != nil {
		return fmt.Errorf("on failure: %w", ErrHandlerAlreadyRegistered)
	}

	b.onFailure = fn
	return nil
}

// Start dispatches all batches and returns without waiting for them.
func (b *MatrixBuilder) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("start matrix builder: %w", ErrBuilderStarted)
	}
	if b.onComplete == nil {
		b.mu.Unlock()
		return fmt.Errorf("start matrix builder: %w", ErrNoCompletionHandler)
	}
	b.started = true
	onComplete, onFailure := b.onComplete, b.onFailure
	b.mu.Unlock()

	b.log.Info("matrix build started",
		zap.Int("waypoints", len(b.waypoints)),
		zap.Int("batches", len(b.batches)),
		zap.Int("batch_size", b.opts.BatchSize),
	)

	// Buffered so senders never block on an aggregator that has stopped.
	results := make(chan batchOutcome, len(b.batches))

	go b.aggregate(ctx, results, onComplete, onFailure)
	go b.dispatch(ctx, results)

	return nil
}

func (b *MatrixBuilder) dispatch(ctx context.Context, results chan<- batchOutcome) {
	var sem chan struct{}
	if b.opts.MaxInFlight > 0 {
		sem = make(chan struct{}, b.opts.MaxInFlight)
	}

	for _, batch := range b.batches {
		if sem != nil {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- batchOutcome{batch: batch, err: ctx.Err()}
				continue
			}
		}

		go func(q BatchQuery) {
			if sem != nil {
				defer func() { <-sem }()
			}
			results <- b.query(ctx, q)
		}(batch)
	}
}

func (b *MatrixBuilder) query(ctx context.Context, q BatchQuery) batchOutcome {
	names := make([]string, len(q.Indices))
	for k, idx := range q.Indices {
		names[k] = b.waypoints[idx].Name
	}

	start := time.Now()
	legs, err := b.oracle.PathLegs(ctx, names)
	metrics.OracleLatency.Observe(time.Since(start).Seconds())

	if err == nil {
		err = validateLegs(legs, len(names))
	}

	if err != nil {
		metrics.OracleBatches.WithLabelValues("failure").Inc()
		return batchOutcome{batch: q, err: fmt.Errorf("query batch pivot=%d size=%d: %w", q.Pivot, len(q.Indices), err)}
	}

	metrics.OracleBatches.WithLabelValues("success").Inc()
	return batchOutcome{batch: q, legs: legs}
}

// validateLegs enforces the oracle contract: one finite, non-negative leg per
// consecutive pair.
func validateLegs(legs []domain.PairDistance, waypoints int) error {
	if len(legs) != waypoints-1 {
		return fmt.Errorf("oracle returned %d legs for %d waypoints", len(legs), waypoints)
	}

	for k, l := range legs {
		if !validMeasure(l.LengthMeters) || !validMeasure(l.TimeSeconds) {
			return fmt.Errorf("oracle returned invalid leg #%d: length=%v time=%v", k, l.LengthMeters, l.TimeSeconds)
		}
	}
	return nil
}

func validMeasure(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// aggregate is the single owner of the matrix and the resolved/failed sets.
func (b *MatrixBuilder) aggregate(
	ctx context.Context,
	results <-chan batchOutcome,
	onComplete func(*domain.DistanceMatrix),
	onFailure func(domain.FailureReport),
) {
	defer close(b.done)

	matrix := domain.NewDistanceMatrix(len(b.waypoints))
	resolved := make(map[int]struct{}, len(b.waypoints))
	failed := make(map[int]struct{})
	pending := len(b.batches)

	var (
		complete bool
		reported bool
		timer    *time.Timer
		debounce <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	finish := func() {
		complete = true
		debounce = nil
		metrics.MatrixBuilds.WithLabelValues("complete").Inc()
		b.log.Info("matrix build complete", zap.Int("pairs", matrix.Len()), zap.Int("failed_points", len(failed)))
		onComplete(matrix)
	}

	if matrix.Required() == 0 {
		finish()
		return
	}

	for pending > 0 || debounce != nil {
		select {
		case <-ctx.Done():
			metrics.MatrixBuilds.WithLabelValues("canceled").Inc()
			b.log.Warn("matrix build canceled", zap.Error(ctx.Err()), zap.Int("pairs", matrix.Len()))
			return

		case out := <-results:
			pending--

			if out.err != nil {
				for _, idx := range out.batch.Indices {
					failed[idx] = struct{}{}
				}
				b.log.Warn("batch query failed", zap.Int("pivot", out.batch.Pivot), zap.Error(out.err))

				if timer == nil && !complete {
					timer = time.NewTimer(b.opts.DebounceDelay)
					debounce = timer.C
				}
				continue
			}

			for k, pair := range out.batch.Pairs() {
				if !matrix.Set(pair, out.legs[k]) {
					b.log.Warn("pair resolved more than once", zap.Stringer("pair", pair))
				}
				resolved[pair.From] = struct{}{}
				resolved[pair.To] = struct{}{}
			}

			if !complete && matrix.Complete() {
				finish()
			}

		case <-debounce:
			debounce = nil
			if complete {
				continue
			}

			report := failureReport(failed, resolved)
			if report.Empty() {
				b.log.Warn("failed batches left pairs unresolved but every waypoint was reached by another query",
					zap.Int("pairs", matrix.Len()), zap.Int("required", matrix.Required()))
				continue
			}

			reported = true
			metrics.MatrixBuilds.WithLabelValues("failed").Inc()
			b.log.Warn("unresolved waypoints", zap.Ints("points", report.Points))
			if onFailure != nil {
				onFailure(report)
			}
		}
	}

	if !complete && !reported {
		metrics.MatrixBuilds.WithLabelValues("incomplete").Inc()
		b.log.Warn("matrix build ended incomplete", zap.Int("pairs", matrix.Len()), zap.Int("required", matrix.Required()))
	}
}

// failureReport returns the failed points that no successful batch resolved.
func failureReport(failed, resolved map[int]struct{}) domain.FailureReport {
	points := make([]int, 0, len(failed))
	for p := range failed {
		if _, ok := resolved[p]; !ok {
			points = append(points, p)
		}
	}
	slices.Sort(points)
	return domain.FailureReport{Points: points}
}
