package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"route-optimizer-service/internal/adapters/cache"
	"route-optimizer-service/internal/adapters/distance"
	"route-optimizer-service/internal/adapters/repositories"
	"route-optimizer-service/internal/api"
	"route-optimizer-service/internal/api/handlers"
	"route-optimizer-service/internal/config"
	"route-optimizer-service/internal/platform/db"
	"route-optimizer-service/internal/platform/logging"
	"route-optimizer-service/internal/platform/metrics"
	"route-optimizer-service/internal/ports"
	"route-optimizer-service/internal/services"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (ORS or geodesic oracle, Postgres and Redis
// caches) behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger depends on config; fall back to a default one.
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterDefault()

	var conn *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		conn, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := repositories.InitSchema(ctx, conn); err != nil {
			return err
		}
		log.Info("postgres cache enabled")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = cache.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("redis leg cache enabled")
	}

	oracle, err := newOracle(cfg, conn, rdb, log)
	if err != nil {
		return err
	}

	repo := repositories.NewMemoryPlanRepository(cfg.PlanRetention)
	jobs := &services.PlanJobs{
		Repo:    repo,
		Oracle:  oracle,
		Timeout: cfg.PlanTimeout,
		Log:     log,
	}

	validator, err := handlers.NewValidator()
	if err != nil {
		return err
	}

	annealing := services.AnnealingOptions{
		StartTemperature: cfg.StartTemperature,
		EndTemperature:   cfg.EndTemperature,
		CoolingFactor:    cfg.CoolingFactor,
		Runs:             cfg.Runs,
		Parallelism:      cfg.Parallelism,
		TopRoutes:        services.DefaultTopRoutes,
		Metric:           services.CostMetric(cfg.CostMetric),
		Seed:             cfg.Seed,
		MaxSteps:         cfg.MaxSteps,
	}
	// The defaults must fit the step ceiling, or every plan would be rejected.
	if err := annealing.Validate(); err != nil {
		return err
	}

	plans := &handlers.PlanHandler{
		Jobs:      jobs,
		Repo:      repo,
		Validator: validator,
		Builder: services.BuilderOptions{
			BatchSize:     cfg.BatchSize,
			DebounceDelay: cfg.FailureDebounce,
			MaxInFlight:   cfg.MaxInFlight,
		},
		Annealing:    annealing,
		MaxWaypoints: cfg.MaxWaypoints,
		Log:          log,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(plans, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("oracle", cfg.Oracle))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	// Let running plans finish so their results are recorded.
	jobs.Wait()
	return nil
}

func newOracle(cfg config.Config, conn *sql.DB, rdb *redis.Client, log *zap.Logger) (ports.RoutingOracle, error) {
	var oracle ports.RoutingOracle

	switch cfg.Oracle {
	case config.OracleGeodesic:
		g, err := distance.NewGeodesicOracle(cfg.GeodesicSpeedKPH)
		if err != nil {
			return nil, err
		}
		oracle = g
	default:
		var geocodes ports.GeocodeCache
		if conn != nil {
			geocodes = cache.NewSQLGeocodeCache(conn, log)
		}

		ors, err := distance.NewORSRoutingOracle(distance.ORSOptions{
			APIKey:    cfg.ORSAPIKey,
			BaseURL:   cfg.ORSBaseURL,
			Profile:   cfg.ORSProfile,
			RateLimit: cfg.ORSRateLimit,
			RateBurst: cfg.ORSRateBurst,
		}, geocodes, log)
		if err != nil {
			return nil, err
		}
		oracle = ors
	}

	// Redis wins when both leg caches are configured.
	switch {
	case rdb != nil:
		return distance.NewCachedOracle(oracle, cache.NewRedisLegCache(rdb, cfg.CacheTTL, log), log), nil
	case conn != nil:
		return distance.NewCachedOracle(oracle, cache.NewSQLLegCache(conn, cfg.CacheTTL, log), log), nil
	}
	return oracle, nil
}
