package forecast

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mr1hm/pest-forecast/internal/models"
)

type cacheEntry struct {
	bounds models.Bounds
	result *models.ForecastResult
}

// resultCache maps a normalized request to its immutable result. Entries are
// removed when an observation lands inside their bounds or on refresh.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]cacheEntry)}
}

func (c *resultCache) get(key string) (*models.ForecastResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.result, ok
}

func (c *resultCache) put(key string, bounds models.Bounds, r *models.ForecastResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{bounds: bounds, result: r}
}

func (c *resultCache) invalidate(lat, lon float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.bounds.Contains(lat, lon) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *resultCache) clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	return n
}

func (c *resultCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cacheKey expects a normalized request: horizons sorted and unique, drone
// options resolved.
func cacheKey(r models.ForecastRequest) string {
	hours := make([]string, len(r.ForecastHours))
	for i, h := range r.ForecastHours {
		hours[i] = fmt.Sprint(h)
	}
	return fmt.Sprintf("%.6f|%.6f|%.6f|%s|%s|%d|%.4f|%.4f",
		r.CenterLat, r.CenterLon, r.RadiusKm, r.PestType, strings.Join(hours, ","),
		r.MaxDrones, r.DroneCapacity, r.DroneRangeKm)
}
