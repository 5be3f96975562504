package cache

import (
	"context"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisLegCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLegCache(client, ttl, nil), mr
}

func TestRedisLegCacheRoundTrip(t *testing.T) {
	c, _ := newTestRedisCache(t, 0)
	ctx := context.Background()

	ab := ports.NamePair{From: "Depot", To: "Pier 9, Dock 2"}
	ba := ports.NamePair{From: "Pier 9, Dock 2", To: "Depot"}

	require.NoError(t, c.PutMany(ctx, map[ports.NamePair]domain.PairDistance{
		ab: {LengthMeters: 1200.5, TimeSeconds: 95},
	}))

	got, err := c.GetMany(ctx, []ports.NamePair{ab, ba, ab})
	require.NoError(t, err)
	require.Equal(t, map[ports.NamePair]domain.PairDistance{
		ab: {LengthMeters: 1200.5, TimeSeconds: 95},
	}, got)
}

func TestRedisLegCacheExpires(t *testing.T) {
	c, mr := newTestRedisCache(t, time.Hour)
	ctx := context.Background()

	p := ports.NamePair{From: "A", To: "B"}
	require.NoError(t, c.PutMany(ctx, map[ports.NamePair]domain.PairDistance{p: {LengthMeters: 1}}))

	mr.FastForward(2 * time.Hour)

	got, err := c.GetMany(ctx, []ports.NamePair{p})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRedisLegCacheSkipsCorruptEntries(t *testing.T) {
	c, mr := newTestRedisCache(t, 0)
	p := ports.NamePair{From: "A", To: "B"}
	require.NoError(t, mr.Set(legKey(p), "not json"))

	got, err := c.GetMany(context.Background(), []ports.NamePair{p})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = OpenRedis(context.Background(), "not a url")
	require.Error(t, err)
}
