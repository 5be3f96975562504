package domain

import "time"

type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// Result of a finished optimization: the matrix it was computed from, the
// ranked routes, and one itinerary per ranked route (Top order).
// Baseline is the greedy nearest-neighbor route over the same matrix.
type PlanResult struct {
	Waypoints   []Waypoint
	Matrix      *DistanceMatrix
	Routes      RankedRouteSet
	Baseline    RankedRoute
	Itineraries []Itinerary
}

// Represents an asynchronous optimization request and its outcome.
// Unresolved lists waypoint names the routing oracle could not resolve; it is
// only populated for failed plans.
type Plan struct {
	ID         string
	Status     PlanStatus
	Waypoints  []Waypoint
	CreatedAt  time.Time
	FinishedAt *time.Time
	Result     *PlanResult
	Error      string
	Unresolved []string
}
