package api

import (
	"net/http"
	"route-optimizer-service/internal/api/handlers"
	"route-optimizer-service/internal/platform/metrics"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(plans *handlers.PlanHandler, log *zap.Logger) http.Handler {
	router := httprouter.New()

	router.GET("/health", handlers.Health(log))
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	router.POST("/api/plans", plans.Create)
	router.POST("/api/plans/csv", plans.Upload)
	router.GET("/api/plans/:id", plans.Get)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{"Location", requestIDHeader},
		MaxAge:         300,
	})

	return alice.New(
		requestID,
		accessLog(log),
		instrument,
		recoverPanic(log),
		corsHandler.Handler,
	).Then(router)
}
