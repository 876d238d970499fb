package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/pest-forecast/internal/models"
)

type flakyProvider struct {
	fail bool
}

func (f *flakyProvider) Current(ctx context.Context, b models.Bounds) (*Report, error) {
	if f.fail {
		return nil, errors.New("upstream down")
	}
	return DemoConditions.Current(ctx, b)
}

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl), mr
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Hour)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", &Report{Source: "x", Readings: []Reading{{TemperatureC: 20}}}))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Source)

	got.Readings[0].TemperatureC = 99
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, 20.0, again.Readings[0].TemperatureC)

	now = now.Add(2 * time.Hour)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Minute)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	in, _ := DemoConditions.Current(ctx, testBounds)
	require.NoError(t, c.Set(ctx, CacheKey(testBounds), in))

	out, err := c.Get(ctx, CacheKey(testBounds))
	require.NoError(t, err)
	assert.Len(t, out.Readings, 5)
	assert.Equal(t, in.Readings[0].TemperatureC, out.Readings[0].TemperatureC)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, CacheKey(testBounds))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestFallback_ServesStaleWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	caches := map[string]Cache{
		"memory": NewMemoryCache(0),
	}
	rc, _ := newRedisCache(t, time.Hour)
	caches["redis"] = rc

	for name, cache := range caches {
		t.Run(name, func(t *testing.T) {
			p := &flakyProvider{}
			f := NewFallback(p, cache)

			fresh, err := f.Current(ctx, testBounds)
			require.NoError(t, err)
			assert.False(t, fresh.Stale)

			p.fail = true
			stale, err := f.Current(ctx, testBounds)
			require.NoError(t, err)
			assert.True(t, stale.Stale)
			assert.Len(t, stale.Readings, len(fresh.Readings))

			other := models.Bounds{MinLat: 1, MinLon: 1, MaxLat: 2, MaxLon: 2}
			_, err = f.Current(ctx, other)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}
