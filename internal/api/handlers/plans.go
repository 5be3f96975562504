package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"route-optimizer-service/internal/adapters/ingest"
	"route-optimizer-service/internal/api/dto"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/ports"
	"route-optimizer-service/internal/services"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const maxUploadBytes = 4 << 20

// PlanSubmitter starts asynchronous plan computations.
type PlanSubmitter interface {
	Submit(ctx context.Context, req services.PlanRouteRequest) (*domain.Plan, error)
}

type PlanHandler struct {
	Jobs         PlanSubmitter
	Repo         ports.PlanRepository
	Validator    *Validator
	Builder      services.BuilderOptions
	Annealing    services.AnnealingOptions
	MaxWaypoints int
	Log          *zap.Logger
}

// Create accepts a JSON waypoint list and schedules its optimization.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req dto.PlanRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, h.Log, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if err := h.Validator.Struct(req); err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, err.Error())
		return
	}

	names := make([]string, len(req.Waypoints))
	stops := make([]int, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		names[i] = wp.Name
		stops[i] = wp.StopMinutes
	}

	h.submit(w, r, names, stops, req.Options)
}

// Upload accepts a multipart CSV file (field "csv") of `name, stop minutes`
// rows and schedules its optimization. The form fields runs, end_temperature,
// cooling_factor and cost_metric override the annealing defaults like the
// JSON options do.
func (h *PlanHandler) Upload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("csv")
	if err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, `form file "csv" is required`)
		return
	}
	defer file.Close()

	rows, err := ingest.ReadWaypointsCSV(file)
	if err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, err.Error())
		return
	}

	opts, err := formPlanOptions(r)
	if err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Validator.Struct(opts); err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, err.Error())
		return
	}

	h.submit(w, r, rows.Names, rows.StopMinutes, opts)
}

func formPlanOptions(r *http.Request) (dto.PlanOptions, error) {
	opts := dto.PlanOptions{CostMetric: r.FormValue("cost_metric")}

	if v := r.FormValue("runs"); v != "" {
		runs, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("runs: %q is not an integer", v)
		}
		opts.Runs = &runs
	}

	floats := []struct {
		field string
		dst   **float64
	}{
		{"end_temperature", &opts.EndTemperature},
		{"cooling_factor", &opts.CoolingFactor},
	}
	for _, f := range floats {
		v := r.FormValue(f.field)
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("%s: %q is not a number", f.field, v)
		}
		*f.dst = &x
	}
	return opts, nil
}

func (h *PlanHandler) submit(w http.ResponseWriter, r *http.Request, names []string, stops []int, opts dto.PlanOptions) {
	if len(names) == 0 {
		writeError(w, r, h.Log, http.StatusBadRequest, "at least one waypoint is required")
		return
	}
	if h.MaxWaypoints > 0 && len(names) > h.MaxWaypoints {
		writeError(w, r, h.Log, http.StatusBadRequest, fmt.Sprintf("at most %d waypoints are allowed, got %d", h.MaxWaypoints, len(names)))
		return
	}

	annealing := h.Annealing
	if opts.Runs != nil {
		annealing.Runs = *opts.Runs
	}
	if opts.EndTemperature != nil {
		annealing.EndTemperature = *opts.EndTemperature
	}
	if opts.CoolingFactor != nil {
		annealing.CoolingFactor = *opts.CoolingFactor
	}
	if opts.CostMetric != "" {
		annealing.Metric = services.CostMetric(opts.CostMetric)
	}
	if err := annealing.Validate(); err != nil {
		writeError(w, r, h.Log, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.Jobs.Submit(r.Context(), services.PlanRouteRequest{
		Names:       names,
		StopMinutes: stops,
		Builder:     h.Builder,
		Annealing:   annealing,
	})
	if errors.Is(err, domain.ErrInvalidWaypoints) {
		writeError(w, r, h.Log, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("submit plan failed", zap.Error(err))
		writeError(w, r, h.Log, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Location", "/api/plans/"+plan.ID)
	writeJSON(w, r, h.Log, http.StatusAccepted, dto.SubmitPlanResponse{PlanID: plan.ID, Status: string(plan.Status)})
}

// Get reports a plan's status and, once finished, its routes or failure.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	plan, err := h.Repo.GetPlan(r.Context(), p.ByName("id"))
	if errors.Is(err, ports.ErrPlanNotFound) {
		writeError(w, r, h.Log, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		h.Log.Error("get plan failed", zap.Error(err))
		writeError(w, r, h.Log, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, h.Log, http.StatusOK, dto.NewPlanResponse(plan))
}
