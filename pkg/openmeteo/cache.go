package openmeteo

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	report  Report
	expires time.Time
}

// Cached memoizes successful reports per place for ttl and collapses
// concurrent lookups of the same place into one upstream call. Failed
// reports are never cached.
type Cached struct {
	next Lookup
	ttl  time.Duration
	now  func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]cacheEntry
}

var _ Lookup = (*Cached)(nil)

func NewCached(next Lookup, ttl time.Duration) *Cached {
	return &Cached{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) GetCurrentWeather(ctx context.Context, place string) Report {
	key := strings.ToLower(strings.TrimSpace(place))
	if c.ttl <= 0 || key == "" {
		return c.next.GetCurrentWeather(ctx, place)
	}

	if r, ok := c.lookup(key); ok {
		return r
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if r, ok := c.lookup(key); ok {
			return r, nil
		}
		r := c.next.GetCurrentWeather(ctx, place)
		if !r.Failed() {
			c.mu.Lock()
			c.entries[key] = cacheEntry{report: r, expires: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return r, nil
	})
	return v.(Report)
}

func (c *Cached) lookup(key string) (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Report{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return Report{}, false
	}
	return e.report, true
}
