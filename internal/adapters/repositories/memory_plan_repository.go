package repositories

import (
	"context"
	"errors"
	"fmt"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/ports"
	"sync"
	"time"
)

// In-memory implementation of the PlanRepository port.
// Finished plans are evicted once they are older than Retention.
type MemoryPlanRepository struct {
	Retention time.Duration

	mu    sync.RWMutex
	plans map[string]domain.Plan
	now   func() time.Time
}

func NewMemoryPlanRepository(retention time.Duration) *MemoryPlanRepository {
	return &MemoryPlanRepository{
		Retention: retention,
		plans:     make(map[string]domain.Plan),
		now:       time.Now,
	}
}

// Store a copy of plan, replacing any earlier version with the same id.
func (r *MemoryPlanRepository) SavePlan(ctx context.Context, plan *domain.Plan) error {
	if plan == nil {
		return errors.New("save plan: plan is nil")
	}
	if plan.ID == "" {
		return errors.New("save plan: plan id is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
	r.plans[plan.ID] = *plan
	return nil
}

func (r *MemoryPlanRepository) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[id]
	if !ok || r.expired(p) {
		return nil, fmt.Errorf("get plan %q: %w", id, ports.ErrPlanNotFound)
	}
	return &p, nil
}

func (r *MemoryPlanRepository) evictLocked() {
	for id, p := range r.plans {
		if r.expired(p) {
			delete(r.plans, id)
		}
	}
}

func (r *MemoryPlanRepository) expired(p domain.Plan) bool {
	if r.Retention <= 0 || p.FinishedAt == nil {
		return false
	}
	return r.now().Sub(*p.FinishedAt) > r.Retention
}
