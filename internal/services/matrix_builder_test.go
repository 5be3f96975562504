package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"route-optimizer-service/internal/adapters/distance"
	"route-optimizer-service/internal/domain"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

func waitDone(t *testing.T, b *MatrixBuilder) {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("matrix builder did not finish")
	}
}

func TestMatrixBuilderOutOfOrderCompletion(t *testing.T) {
	reverse := func(n int) []int {
		order := make([]int, n)
		for k := range order {
			order[k] = n - 1 - k
		}
		return order
	}
	t.Run("reverse", func(t *testing.T) { checkCompletionOrder(t, reverse) })

	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("shuffled-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, 0))
			checkCompletionOrder(t, rng.Perm)
		})
	}
}

// checkCompletionOrder releases batch results in the order given by order and
// expects exactly one completion with every pair filled in.
func checkCompletionOrder(t *testing.T, order func(n int) []int) {
	names := namesN(6)
	waypoints := testWaypoints(t, names...)
	mock := distance.NewMockOracle(pairTable(names, func(i, j int) float64 { return float64(100*i + j) }))

	gated := newGatedOracle(mock, 64)
	b, err := NewMatrixBuilder(gated, waypoints, BuilderOptions{BatchSize: 5, DebounceDelay: testDebounce}, nil)
	require.NoError(t, err)

	var completions atomic.Int32
	var got *domain.DistanceMatrix
	require.NoError(t, b.OnComplete(func(m *domain.DistanceMatrix) {
		completions.Add(1)
		got = m
	}))
	require.NoError(t, b.OnFailure(func(domain.FailureReport) { t.Error("unexpected failure report") }))

	require.NoError(t, b.Start(context.Background()))

	gates := make([]chan struct{}, 0, len(b.Batches()))
	for range b.Batches() {
		gates = append(gates, <-gated.arrived)
	}

	for _, k := range order(len(gates)) {
		close(gates[k])
		time.Sleep(time.Millisecond)
	}

	waitDone(t, b)
	require.EqualValues(t, 1, completions.Load())
	require.True(t, got.Complete())

	for i := range names {
		for j := range names {
			if i == j {
				continue
			}
			d, ok := got.Get(i, j)
			require.True(t, ok)
			require.Equal(t, float64(100*i+j), d.LengthMeters)
		}
	}
}

func TestMatrixBuilderSingleWaypointCompletesImmediately(t *testing.T) {
	mock := distance.NewMockOracle(nil)
	b, err := NewMatrixBuilder(mock, testWaypoints(t, "Depot"), BuilderOptions{}, nil)
	require.NoError(t, err)
	require.Empty(t, b.Batches())

	done := make(chan *domain.DistanceMatrix, 1)
	require.NoError(t, b.OnComplete(func(m *domain.DistanceMatrix) { done <- m }))
	require.NoError(t, b.Start(context.Background()))

	waitDone(t, b)
	m := <-done
	require.Equal(t, 1, m.Size())
	require.True(t, m.Complete())
	require.Zero(t, mock.Calls())
}

func TestMatrixBuilderReportsUnresolvedWaypoint(t *testing.T) {
	names := []string{"A", "B", "C", "D"}
	mock := distance.NewMockOracle(pairTable(names, func(i, j int) float64 { return 1 }), "D")

	b, err := NewMatrixBuilder(mock, testWaypoints(t, names...), BuilderOptions{BatchSize: 3, DebounceDelay: testDebounce}, nil)
	require.NoError(t, err)

	var reports []domain.FailureReport
	var mu sync.Mutex
	require.NoError(t, b.OnComplete(func(*domain.DistanceMatrix) { t.Error("unexpected completion") }))
	require.NoError(t, b.OnFailure(func(r domain.FailureReport) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
	}))

	start := time.Now()
	require.NoError(t, b.Start(context.Background()))
	waitDone(t, b)

	require.GreaterOrEqual(t, time.Since(start), testDebounce)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 1)
	require.Equal(t, []int{3}, reports[0].Points)
	require.Equal(t, []string{"D"}, reports[0].Names(testWaypoints(t, names...)))
}

func TestMatrixBuilderMaskedFailureIsNotReported(t *testing.T) {
	names := []string{"A", "B", "C", "D"}
	oracle := &sequenceFailOracle{
		next: distance.NewMockOracle(pairTable(names, func(i, j int) float64 { return 1 })),
		fail: [][]string{{"A", "D", "A"}},
	}

	b, err := NewMatrixBuilder(oracle, testWaypoints(t, names...), BuilderOptions{BatchSize: 3, DebounceDelay: testDebounce}, nil)
	require.NoError(t, err)

	var handled atomic.Int32
	require.NoError(t, b.OnComplete(func(*domain.DistanceMatrix) { handled.Add(1) }))
	require.NoError(t, b.OnFailure(func(domain.FailureReport) { handled.Add(1) }))

	require.NoError(t, b.Start(context.Background()))
	waitDone(t, b)

	// A and D were both reached by other batches, so nothing is reported
	// even though A-D and D-A are missing.
	require.Zero(t, handled.Load())
}

func TestMatrixBuilderRespectsMaxInFlight(t *testing.T) {
	names := namesN(8)
	mock := distance.NewMockOracle(pairTable(names, func(i, j int) float64 { return 1 }))

	var inFlight, peak atomic.Int32
	oracle := oracleFunc(func(ctx context.Context, w []string) ([]domain.PairDistance, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return mock.PathLegs(ctx, w)
	})

	b, err := NewMatrixBuilder(oracle, testWaypoints(t, names...), BuilderOptions{BatchSize: 3, MaxInFlight: 2}, nil)
	require.NoError(t, err)

	completed := make(chan struct{})
	require.NoError(t, b.OnComplete(func(*domain.DistanceMatrix) { close(completed) }))
	require.NoError(t, b.Start(context.Background()))
	waitDone(t, b)

	<-completed
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestMatrixBuilderCancel(t *testing.T) {
	names := namesN(3)
	gated := newGatedOracle(distance.NewMockOracle(pairTable(names, func(i, j int) float64 { return 1 })), 8)

	b, err := NewMatrixBuilder(gated, testWaypoints(t, names...), BuilderOptions{}, nil)
	require.NoError(t, err)

	var handled atomic.Int32
	require.NoError(t, b.OnComplete(func(*domain.DistanceMatrix) { handled.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Start(ctx))
	<-gated.arrived
	cancel()

	waitDone(t, b)
	require.Zero(t, handled.Load())
}

func TestMatrixBuilderRegistration(t *testing.T) {
	mock := distance.NewMockOracle(nil)
	b, err := NewMatrixBuilder(mock, testWaypoints(t, "A", "B"), BuilderOptions{DebounceDelay: testDebounce}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, b.Start(context.Background()), ErrNoCompletionHandler)

	require.NoError(t, b.OnComplete(func(*domain.DistanceMatrix) {}))
	require.ErrorIs(t, b.OnComplete(func(*domain.DistanceMatrix) {}), ErrHandlerAlreadyRegistered)
	require.NoError(t, b.OnFailure(func(domain.FailureReport) {}))
	require.ErrorIs(t, b.OnFailure(func(domain.FailureReport) {}), ErrHandlerAlreadyRegistered)

	require.NoError(t, b.Start(context.Background()))
	require.ErrorIs(t, b.Start(context.Background()), ErrBuilderStarted)
	require.ErrorIs(t, b.OnComplete(func(*domain.DistanceMatrix) {}), ErrBuilderStarted)
	waitDone(t, b)

	_, err = NewMatrixBuilder(mock, testWaypoints(t, "A"), BuilderOptions{BatchSize: 2}, nil)
	require.ErrorIs(t, err, ErrBatchSizeTooSmall)
}

func TestValidateLegs(t *testing.T) {
	require.NoError(t, validateLegs([]domain.PairDistance{{LengthMeters: 1}, {}}, 3))
	require.Error(t, validateLegs([]domain.PairDistance{{}}, 3))
	require.Error(t, validateLegs([]domain.PairDistance{{LengthMeters: -1}}, 2))
}

type oracleFunc func(ctx context.Context, waypoints []string) ([]domain.PairDistance, error)

func (f oracleFunc) PathLegs(ctx context.Context, waypoints []string) ([]domain.PairDistance, error) {
	return f(ctx, waypoints)
}
