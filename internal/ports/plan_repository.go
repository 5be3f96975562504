package ports

import (
	"context"
	"errors"
	"route-optimizer-service/internal/domain"
)

var ErrPlanNotFound = errors.New("plan not found")

// Port: a boundary for persisting optimization plans.
type PlanRepository interface {
	SavePlan(ctx context.Context, plan *domain.Plan) error
	// Return the plan or ErrPlanNotFound.
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
}
