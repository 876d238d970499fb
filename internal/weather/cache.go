package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/pest-forecast/internal/models"
)

var ErrCacheMiss = errors.New("weather cache miss")

// Cache keeps the last good report per area so it can be served when the
// live provider fails.
type Cache interface {
	Get(ctx context.Context, key string) (*Report, error)
	Set(ctx context.Context, key string, r *Report) error
}

func CacheKey(b models.Bounds) string {
	return fmt.Sprintf("weather:%.3f,%.3f,%.3f,%.3f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

type memoryEntry struct {
	report  Report
	expires time.Time
}

type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache keeps reports for ttl; zero keeps them forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Report, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && c.now().After(e.expires)) {
		return nil, ErrCacheMiss
	}
	r := e.report
	r.Readings = append([]Reading(nil), e.report.Readings...)
	return &r, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r *Report) error {
	e := memoryEntry{report: *r}
	e.report.Readings = append([]Reading(nil), r.Readings...)
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Report, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &r, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, r *Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Fallback serves the primary provider and remembers its answers. When the
// primary fails, the cached report is returned marked stale.
type Fallback struct {
	primary Provider
	cache   Cache
	log     *slog.Logger
}

func NewFallback(primary Provider, cache Cache) *Fallback {
	return &Fallback{primary: primary, cache: cache, log: slog.With("component", "weather")}
}

func (f *Fallback) Current(ctx context.Context, bounds models.Bounds) (*Report, error) {
	key := CacheKey(bounds)
	r, err := f.primary.Current(ctx, bounds)
	if err == nil {
		if cerr := f.cache.Set(ctx, key, r); cerr != nil {
			f.log.Warn("caching weather report failed", "key", key, "error", cerr)
		}
		return r, nil
	}

	cached, cerr := f.cache.Get(ctx, key)
	if cerr != nil {
		if !errors.Is(cerr, ErrCacheMiss) {
			f.log.Warn("reading weather cache failed", "key", key, "error", cerr)
		}
		return nil, fmt.Errorf("%w: live fetch failed and no cached report: %v", ErrUnavailable, err)
	}
	f.log.Warn("serving stale weather", "key", key, "fetched_at", cached.FetchedAt, "error", err)
	cached.Stale = true
	return cached, nil
}
