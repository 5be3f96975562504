package services

import (
	"context"
	"errors"
	"fmt"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/metrics"
	"route-optimizer-service/internal/platform/obs"
	"route-optimizer-service/internal/ports"
	"strings"

	"go.uber.org/zap"
)

var ErrMatrixIncomplete = errors.New("distance matrix incomplete: failed oracle queries left pairs unresolved")

// UnresolvedWaypointsError reports waypoints the routing oracle could not reach.
type UnresolvedWaypointsError struct {
	Report domain.FailureReport
	Names  []string
}

func (e *UnresolvedWaypointsError) Error() string {
	return "cannot determine distance to waypoints: " + strings.Join(e.Names, ", ")
}

type PlanRouteRequest struct {
	Names       []string
	StopMinutes []int
	Builder     BuilderOptions
	Annealing   AnnealingOptions
}

// PlanRoute assembles the distance matrix for the requested waypoints and
// optimizes the visiting order from the first waypoint.
//
// It waits for the matrix builder's terminal notification: completion
// continues into optimization, a failure report becomes an
// *UnresolvedWaypointsError. ctx bounds both phases.
func PlanRoute(
	ctx context.Context,
	req PlanRouteRequest,
	oracle ports.RoutingOracle,
	log *zap.Logger,
) (_ *domain.PlanResult, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	defer obs.Time(ctx, log, "services.PlanRoute")(&err)

	waypoints, err := domain.NewWaypoints(req.Names, req.StopMinutes)
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	matrix, err := BuildMatrix(ctx, oracle, waypoints, req.Builder, log)
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	optimizer, err := NewRouteOptimizer(matrix, req.Annealing, log)
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}
	routes, err := optimizer.Optimize(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	baseline, err := optimizer.NearestNeighborRoute()
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	itineraries := make([]domain.Itinerary, 0, len(routes.Top))
	for _, r := range routes.Top {
		it, err := domain.BuildItinerary(r, waypoints, matrix)
		if err != nil {
			return nil, fmt.Errorf("plan route: %w", err)
		}
		itineraries = append(itineraries, it)
	}

	return &domain.PlanResult{
		Waypoints:   waypoints,
		Matrix:      matrix,
		Routes:      routes,
		Baseline:    baseline,
		Itineraries: itineraries,
	}, nil
}

// BuildMatrix runs a MatrixBuilder and blocks until its terminal notification,
// the end of aggregation, or ctx cancellation.
func BuildMatrix(
	ctx context.Context,
	oracle ports.RoutingOracle,
	waypoints []domain.Waypoint,
	opts BuilderOptions,
	log *zap.Logger,
) (*domain.DistanceMatrix, error) {
	builder, err := NewMatrixBuilder(oracle, waypoints, opts, log)
	if err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}

	completed := make(chan *domain.DistanceMatrix, 1)
	failed := make(chan domain.FailureReport, 1)

	if err := builder.OnComplete(func(m *domain.DistanceMatrix) { completed <- m }); err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}
	if err := builder.OnFailure(func(r domain.FailureReport) { failed <- r }); err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}

	// Stops in-flight queries once this call returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := builder.Start(ctx); err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}

	unresolved := func(r domain.FailureReport) error {
		return &UnresolvedWaypointsError{Report: r, Names: r.Names(waypoints)}
	}

	select {
	case m := <-completed:
		return m, nil
	case r := <-failed:
		return nil, unresolved(r)
	case <-builder.Done():
		// Handlers run before Done closes; drain whichever fired.
		select {
		case m := <-completed:
			return m, nil
		case r := <-failed:
			return nil, unresolved(r)
		default:
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build matrix: %w", err)
		}
		return nil, fmt.Errorf("build matrix: %w", ErrMatrixIncomplete)
	case <-ctx.Done():
		return nil, fmt.Errorf("build matrix: %w", ctx.Err())
	}
}

// recordPlanOutcome counts a finished plan by status.
func recordPlanOutcome(status domain.PlanStatus) {
	metrics.Plans.WithLabelValues(string(status)).Inc()
}
