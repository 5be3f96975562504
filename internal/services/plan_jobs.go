package services

import (
	"context"
	"errors"
	"fmt"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/obs"
	"route-optimizer-service/internal/ports"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlanJobs runs PlanRoute asynchronously and records progress in a repository.
type PlanJobs struct {
	Repo    ports.PlanRepository
	Oracle  ports.RoutingOracle
	Timeout time.Duration
	Log     *zap.Logger

	wg sync.WaitGroup
}

// Submit stores a pending plan and starts computing it in the background.
// The returned plan carries the id to poll with.
func (j *PlanJobs) Submit(ctx context.Context, req PlanRouteRequest) (*domain.Plan, error) {
	waypoints, err := domain.NewWaypoints(req.Names, req.StopMinutes)
	if err != nil {
		return nil, fmt.Errorf("submit plan: %w", err)
	}

	plan := &domain.Plan{
		ID:        uuid.NewString(),
		Status:    domain.PlanPending,
		Waypoints: waypoints,
		CreatedAt: time.Now().UTC(),
	}

	if err := j.Repo.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("submit plan: save pending plan: %w", err)
	}

	// The job outlives the submitting request; keep only its request id.
	jobCtx := obs.WithRequestID(context.Background(), obs.RequestID(ctx))

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(jobCtx, *plan, req)
	}()

	return plan, nil
}

// Wait blocks until every submitted plan has finished.
func (j *PlanJobs) Wait() { j.wg.Wait() }

func (j *PlanJobs) run(ctx context.Context, plan domain.Plan, req PlanRouteRequest) {
	log := j.logger().With(zap.String("plan_id", plan.ID))

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	result, err := PlanRoute(ctx, req, j.Oracle, log)

	finished := time.Now().UTC()
	plan.FinishedAt = &finished

	if err != nil {
		plan.Status = domain.PlanFailed
		plan.Error = err.Error()

		var unresolved *UnresolvedWaypointsError
		if errors.As(err, &unresolved) {
			plan.Unresolved = unresolved.Names
		}
		log.Warn("plan failed", zap.Error(err))
	} else {
		plan.Status = domain.PlanCompleted
		plan.Result = result
		log.Info("plan completed", zap.Float64("best_cost", result.Routes.Best.Cost))
	}
	recordPlanOutcome(plan.Status)

	// Saving must not depend on the (possibly expired) job deadline.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.Repo.SavePlan(saveCtx, &plan); err != nil {
		log.Error("save finished plan", zap.Error(err))
	}
}

func (j *PlanJobs) logger() *zap.Logger {
	if j.Log == nil {
		return zap.NewNop()
	}
	return j.Log
}
