package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the Postgres cache schema.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLegCacheQuery := `
	CREATE TABLE IF NOT EXISTS leg_cache (
        origin TEXT NOT NULL,
        destination TEXT NOT NULL,
        length_meters DOUBLE PRECISION NOT NULL,
        time_seconds DOUBLE PRECISION NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (origin, destination)
    );
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
        name TEXT PRIMARY KEY,
        lon DOUBLE PRECISION NOT NULL,
        lat DOUBLE PRECISION NOT NULL
    );
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_leg_cache_updated_at
    ON leg_cache(updated_at);
	`

	statements := []string{
		createLegCacheQuery,
		createGeocodeCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// PurgeLegCache deletes cached legs last refreshed more than olderThanSeconds ago and
// returns how many rows were removed.
func PurgeLegCache(ctx context.Context, db *sql.DB, olderThanSeconds float64) (int64, error) {
	if db == nil {
		return 0, errors.New("purge leg cache: DB is nil")
	}

	res, err := db.ExecContext(ctx,
		`DELETE FROM leg_cache WHERE updated_at < now() - make_interval(secs => $1::float8);`,
		olderThanSeconds,
	)
	if err != nil {
		return 0, fmt.Errorf("purge leg cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge leg cache: rows affected: %w", err)
	}
	return n, nil
}

type GeocodeSeed struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Populate the geocode cache with known waypoint coordinates from a JSON file.
func SeedGeocodesFromJSON(ctx context.Context, db *sql.DB, jsonPath string) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed geocodes: read %q: %w", jsonPath, err)
	}

	var data []GeocodeSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed geocodes: parse json: %w", err)
	}

	rows := make([]GeocodeSeed, 0, len(data))
	for i, item := range data {
		name := strings.Join(strings.Fields(item.Name), " ")
		if name == "" {
			return 0, fmt.Errorf("seed geocodes: item at index %d: name cannot be empty", i+1)
		}
		if item.Lat < -90 || item.Lat > 90 || item.Lon < -180 || item.Lon > 180 {
			return 0, fmt.Errorf("seed geocodes: item %q: coordinates out of range", name)
		}
		rows = append(rows, GeocodeSeed{Name: name, Lat: item.Lat, Lon: item.Lon})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed geocodes: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO geocode_cache (name, lon, lat)
	VALUES ($1, $2, $3)
	ON CONFLICT (name) DO UPDATE
	SET lon = EXCLUDED.lon,
		lat = EXCLUDED.lat;
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("seed geocodes: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range rows {
		if _, err := stmt.ExecContext(ctx, g.Name, g.Lon, g.Lat); err != nil {
			return 0, fmt.Errorf("seed geocodes: insert %q: %w", g.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed geocodes: commit tx: %w", err)
	}

	return len(rows), nil
}
