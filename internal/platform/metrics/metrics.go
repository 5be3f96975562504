package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// OracleBatches counts routing oracle batch queries by outcome (success, failure)
	OracleBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "oracle_batches_total", Help: "Routing oracle batch queries by outcome."},
		[]string{"outcome"},
	)
	// OracleLatency tracks batch query latency in seconds
	OracleLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "oracle_batch_duration_seconds", Help: "Routing oracle batch latency in seconds.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}},
	)
	// LegCacheLookups counts leg cache lookups by result (hit, miss)
	LegCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "leg_cache_lookups_total", Help: "Leg cache lookups by result."},
		[]string{"result"},
	)

	// MatrixBuilds counts distance matrix assemblies by terminal outcome
	MatrixBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "matrix_builds_total", Help: "Distance matrix builds by outcome."},
		[]string{"outcome"},
	)
	// AnnealingRunDuration records the wall time of a single annealing run
	AnnealingRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "annealing_run_duration_seconds", Help: "Simulated annealing run duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.001, 4, 8)},
	)
	// Plans counts finished plans by status
	Plans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plans_total", Help: "Finished plans by status."},
		[]string{"status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			OracleBatches,
			OracleLatency,
			LegCacheLookups,
			MatrixBuilds,
			AnnealingRunDuration,
			Plans,
		)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
