package dto

import (
	"route-optimizer-service/internal/domain"
	"time"
)

type WaypointRequest struct {
	Name        string `json:"name" validate:"required,max=500"`
	StopMinutes int    `json:"stop_minutes" validate:"gte=0,lte=1440"`
}

// PlanOptions overrides the server's annealing defaults for one plan.
type PlanOptions struct {
	Runs           *int     `json:"runs" validate:"omitempty,min=1,max=200"`
	EndTemperature *float64 `json:"end_temperature" validate:"omitempty,gte=1e-12"`
	CoolingFactor  *float64 `json:"cooling_factor" validate:"omitempty,gt=0,lte=0.9999"`
	CostMetric     string   `json:"cost_metric" validate:"omitempty,oneof=length time"`
}

type PlanRequest struct {
	Waypoints []WaypointRequest `json:"waypoints" validate:"required,min=1,dive"`
	Options   PlanOptions       `json:"options"`
}

type SubmitPlanResponse struct {
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
}

type WaypointResponse struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	StopMinutes int    `json:"stop_minutes"`
}

type LegResponse struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	LengthMeters float64 `json:"length_meters"`
	DriveSeconds float64 `json:"drive_seconds"`
	StopSeconds  float64 `json:"stop_seconds"`
}

type RouteResponse struct {
	Order             []int         `json:"order"`
	Names             []string      `json:"names"`
	Cost              float64       `json:"cost"`
	TotalLengthMeters float64       `json:"total_length_meters,omitempty"`
	TotalSeconds      float64       `json:"total_seconds,omitempty"`
	Legs              []LegResponse `json:"legs,omitempty"`
}

type PlanResponse struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Waypoints  []WaypointResponse `json:"waypoints"`
	Best       *RouteResponse     `json:"best,omitempty"`
	Routes     []RouteResponse    `json:"routes,omitempty"`
	Baseline   *RouteResponse     `json:"baseline,omitempty"`
	Error      string             `json:"error,omitempty"`
	Unresolved []string           `json:"unresolved,omitempty"`
}

func NewPlanResponse(p *domain.Plan) PlanResponse {
	res := PlanResponse{
		ID:         p.ID,
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
		FinishedAt: p.FinishedAt,
		Waypoints:  make([]WaypointResponse, 0, len(p.Waypoints)),
		Error:      p.Error,
		Unresolved: p.Unresolved,
	}

	for _, w := range p.Waypoints {
		res.Waypoints = append(res.Waypoints, WaypointResponse{Index: w.Index, Name: w.Name, StopMinutes: w.StopMinutes})
	}

	if p.Result == nil {
		return res
	}

	res.Routes = make([]RouteResponse, 0, len(p.Result.Itineraries))
	for _, it := range p.Result.Itineraries {
		res.Routes = append(res.Routes, newItineraryResponse(it, p.Result.Waypoints))
	}
	if len(res.Routes) > 0 {
		best := res.Routes[0]
		res.Best = &best
	}

	baseline := RouteResponse{
		Order: p.Result.Baseline.Route,
		Names: routeNames(p.Result.Baseline.Route, p.Result.Waypoints),
		Cost:  p.Result.Baseline.Cost,
	}
	res.Baseline = &baseline

	return res
}

func newItineraryResponse(it domain.Itinerary, waypoints []domain.Waypoint) RouteResponse {
	r := RouteResponse{
		Order:             it.Route,
		Names:             routeNames(it.Route, waypoints),
		Cost:              it.Cost,
		TotalLengthMeters: it.TotalLengthMeters,
		TotalSeconds:      it.TotalSeconds,
		Legs:              make([]LegResponse, 0, len(it.Legs)),
	}

	for _, l := range it.Legs {
		r.Legs = append(r.Legs, LegResponse{
			From:         l.From.Name,
			To:           l.To.Name,
			LengthMeters: l.LengthMeters,
			DriveSeconds: l.DriveSeconds,
			StopSeconds:  l.StopSeconds,
		})
	}
	return r
}

func routeNames(route domain.Route, waypoints []domain.Waypoint) []string {
	names := make([]string, 0, len(route))
	for _, idx := range route {
		if idx >= 0 && idx < len(waypoints) {
			names = append(names, waypoints[idx].Name)
		}
	}
	return names
}
