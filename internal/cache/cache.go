// Package cache stores parsed query results keyed by normalized KQL.
// The cache belongs to the active profile and is replaced wholesale on a
// profile switch.
package cache

import (
	"sync"
	"time"

	"github.com/bctelemetry/bctb/internal/kusto"
)

type entry struct {
	result    *kusto.QueryResult
	expiresAt time.Time
}

// Cache is a TTL map guarded for parallel agents sharing a profile.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	enabled bool
	hits    int64
	misses  int64

	now func() time.Time // test hook
}

// Stats is the get_cache_stats answer.
type Stats struct {
	Enabled    bool  `json:"enabled"`
	Entries    int   `json:"entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	TTLSeconds int   `json:"ttlSeconds"`
}

func New(ttlSeconds int, enabled bool) *Cache {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     time.Duration(ttlSeconds) * time.Second,
		enabled: enabled,
		now:     time.Now,
	}
}

// Fingerprint is the cache key: the normalized query text.
func Fingerprint(kql string) string {
	return kusto.Normalize(kql)
}

// Get returns a clone of the cached result with Cached set, or nil on miss.
func (c *Cache) Get(kql string) *kusto.QueryResult {
	if c == nil || !c.enabled {
		return nil
	}
	key := Fingerprint(kql)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil
	}
	c.hits++
	clone := e.result.Clone()
	clone.Cached = true
	return clone
}

// Set stores the post-parse result under the query's fingerprint.
func (c *Cache) Set(kql string, result *kusto.QueryResult) {
	if c == nil || !c.enabled || result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Fingerprint(kql)] = entry{
		result:    result.Clone(),
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Enabled:    c.enabled,
		Entries:    len(c.entries),
		Hits:       c.hits,
		Misses:     c.misses,
		TTLSeconds: int(c.ttl / time.Second),
	}
}

// Clear drops everything and reports how many entries went away.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	return n
}

// Cleanup drops expired entries only.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
