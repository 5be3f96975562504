package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/obs"
	"route-optimizer-service/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const legKeyPrefix = "leg:"

type redisLeg struct {
	LengthMeters float64 `json:"m"`
	TimeSeconds  float64 `json:"s"`
}

// RedisLegCache is a Redis-backed leg cache. Each pair is one string key
// holding a small JSON document and expiring after TTL (zero means never).
type RedisLegCache struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *zap.Logger
}

func NewRedisLegCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLegCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLegCache{Client: client, TTL: ttl, Log: log}
}

// Open a client for url (redis://...) and verify it responds.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("open redis: parse url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open redis: ping: %w", err)
	}
	return client, nil
}

func legKey(p ports.NamePair) string {
	// Waypoint names may contain any printable character; the unit separator cannot.
	return legKeyPrefix + p.From + "\x1f" + p.To
}

func (c *RedisLegCache) GetMany(
	ctx context.Context,
	pairs []ports.NamePair,
) (_ map[ports.NamePair]domain.PairDistance, err error) {
	defer obs.Time(ctx, c.Log, "leg.redis.GetMany")(&err)

	if c.Client == nil {
		return nil, errors.New("leg cache: redis client is nil")
	}

	origins, destinations := uniquePairs(pairs)
	if len(origins) == 0 {
		return map[ports.NamePair]domain.PairDistance{}, nil
	}

	keys := make([]string, len(origins))
	for i := range origins {
		keys[i] = legKey(ports.NamePair{From: origins[i], To: destinations[i]})
	}

	vals, err := c.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get leg cache: mget: %w", err)
	}

	out := make(map[ports.NamePair]domain.PairDistance, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}

		var leg redisLeg
		if err := json.Unmarshal([]byte(s), &leg); err != nil {
			c.Log.Warn("leg cache: dropping corrupt entry", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out[ports.NamePair{From: origins[i], To: destinations[i]}] = domain.PairDistance{
			LengthMeters: leg.LengthMeters,
			TimeSeconds:  leg.TimeSeconds,
		}
	}
	return out, nil
}

func (c *RedisLegCache) PutMany(ctx context.Context, legs map[ports.NamePair]domain.PairDistance) error {
	if c.Client == nil {
		return errors.New("leg cache: redis client is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	pipe := c.Client.Pipeline()
	for p, d := range legs {
		b, err := json.Marshal(redisLeg{LengthMeters: d.LengthMeters, TimeSeconds: d.TimeSeconds})
		if err != nil {
			return fmt.Errorf("insert leg cache: marshal: %w", err)
		}
		pipe.Set(ctx, legKey(p), b, c.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert leg cache: pipeline: %w", err)
	}
	return nil
}
