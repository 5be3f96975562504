package main

import (
	"context"
	"fmt"
	"os"
	"route-optimizer-service/internal/adapters/repositories"
	"route-optimizer-service/internal/platform/db"
	"route-optimizer-service/internal/platform/logging"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// dbtool prepares the Postgres cache database: it creates the schema,
// optionally seeds known geocodes, and purges stale legs.
func main() {
	seedPath := pflag.String("seed-geocodes", "", "JSON file of {name, lat, lon} entries to load into the geocode cache")
	purgeOlder := pflag.Duration("purge-legs-older-than", 0, "delete cached legs last refreshed before this age (0 keeps all)")
	logLevel := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	log, err := logging.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	log.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		log.Fatal("schema initialization failed", zap.Error(err))
	}
	log.Info("schema ready")

	if *seedPath != "" {
		n, err := repositories.SeedGeocodesFromJSON(ctx, conn, *seedPath)
		if err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("geocodes seeded", zap.Int("count", n), zap.String("path", *seedPath))
	}

	if *purgeOlder > 0 {
		n, err := repositories.PurgeLegCache(ctx, conn, purgeOlder.Seconds())
		if err != nil {
			log.Fatal("purge failed", zap.Error(err))
		}
		log.Info("stale legs purged", zap.Int64("rows", n), zap.Duration("older_than", *purgeOlder))
	}
}
