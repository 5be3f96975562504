package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/obs"
	"route-optimizer-service/internal/ports"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SQLLegCache is a Postgres-backed cache of resolved waypoint legs.
// Entries older than TTL are ignored; a zero TTL keeps them forever.
type SQLLegCache struct {
	DB  *sql.DB
	TTL time.Duration
	Log *zap.Logger
}

func NewSQLLegCache(db *sql.DB, ttl time.Duration, log *zap.Logger) *SQLLegCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLLegCache{DB: db, TTL: ttl, Log: log}
}

// Fetch cached legs for the given ordered pairs.
func (s *SQLLegCache) GetMany(
	ctx context.Context,
	pairs []ports.NamePair,
) (_ map[ports.NamePair]domain.PairDistance, err error) {
	defer obs.Time(ctx, s.Log, "leg.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("leg cache: db is nil")
	}

	origins, destinations := uniquePairs(pairs)
	if len(origins) == 0 {
		return map[ports.NamePair]domain.PairDistance{}, nil
	}

	q := `
	SELECT c.origin, c.destination, c.length_meters, c.time_seconds
    FROM leg_cache c
    JOIN unnest($1::text[], $2::text[]) AS q(origin, destination)
        ON c.origin = q.origin AND c.destination = q.destination
    WHERE $3::float8 <= 0 OR c.updated_at > now() - make_interval(secs => $3::float8);
	`

	rows, err := s.DB.QueryContext(ctx, q, origins, destinations, s.TTL.Seconds())
	if err != nil {
		return nil, fmt.Errorf("get leg cache: query leg_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[ports.NamePair]domain.PairDistance, len(origins))
	for rows.Next() {
		var p ports.NamePair
		var d domain.PairDistance
		if err := rows.Scan(&p.From, &p.To, &d.LengthMeters, &d.TimeSeconds); err != nil {
			return nil, fmt.Errorf("get leg cache: scan rows: %w", err)
		}
		out[p] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get leg cache: row iteration: %w", err)
	}

	return out, nil
}

// Store resolved legs, replacing older entries for the same pair.
func (s *SQLLegCache) PutMany(ctx context.Context, legs map[ports.NamePair]domain.PairDistance) error {
	if s.DB == nil {
		return errors.New("leg cache: db is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert leg cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO leg_cache (origin, destination, length_meters, time_seconds, updated_at)
    VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (origin, destination) DO UPDATE
	SET length_meters = EXCLUDED.length_meters,
		time_seconds = EXCLUDED.time_seconds,
		updated_at = EXCLUDED.updated_at;
	`)
	if err != nil {
		return fmt.Errorf("insert leg cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for p, d := range legs {
		if strings.TrimSpace(p.From) == "" || strings.TrimSpace(p.To) == "" {
			return fmt.Errorf("insert leg cache: empty waypoint in pair %q -> %q", p.From, p.To)
		}

		if _, err := stmt.ExecContext(ctx, p.From, p.To, d.LengthMeters, d.TimeSeconds); err != nil {
			return fmt.Errorf("insert leg cache %q -> %q: %w", p.From, p.To, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert leg cache commit: %w", err)
	}

	return nil
}

// uniquePairs splits pairs into parallel origin/destination slices, skipping
// blanks and duplicates.
func uniquePairs(pairs []ports.NamePair) ([]string, []string) {
	seen := make(map[ports.NamePair]struct{}, len(pairs))
	origins := make([]string, 0, len(pairs))
	destinations := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if strings.TrimSpace(p.From) == "" || strings.TrimSpace(p.To) == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		origins = append(origins, p.From)
		destinations = append(destinations, p.To)
	}
	return origins, destinations
}
