// Package cache implements the in-memory response cache used to avoid
// redundant search and suggestion calls. Entries expire after their TTL: a
// scheduled timer removes them, and reads evict lazily as a safety net.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/searchconsole/internal/clock"
	"github.com/JakeFAU/searchconsole/internal/clock/system"
	"github.com/JakeFAU/searchconsole/internal/metrics"
)

const defaultTTL = 5 * time.Minute

// Config controls cache behavior.
type Config struct {
	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL time.Duration
	Clock      clock.Clock
}

type entry struct {
	value      any
	createdAt  time.Time
	ttl        time.Duration
	generation uint64
	timer      clock.Timer
}

// An entry is live while less than ttl has elapsed; at exactly ttl it is gone.
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Cache is a key/value store with per-entry TTL and no capacity bound.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64
	defaultTTL time.Duration
	clock      clock.Clock
	closed     bool
}

// New builds a Cache.
func New(cfg Config) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	return &Cache{
		entries:    make(map[string]*entry),
		defaultTTL: cfg.DefaultTTL,
		clock:      cfg.Clock,
	}
}

// DefaultTTL returns the TTL used when Set receives a non-positive one.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Set stores value under key and schedules its removal after ttl.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if old, ok := c.entries[key]; ok && old.timer != nil {
		old.timer.Stop()
	}
	c.generation++
	gen := c.generation
	e := &entry{
		value:      value,
		createdAt:  c.clock.Now(),
		ttl:        ttl,
		generation: gen,
	}
	e.timer = c.clock.AfterFunc(ttl, func() { c.evict(key, gen) })
	c.entries[key] = e
	metrics.SetCacheEntries(len(c.entries))
}

// evict removes key only if it still holds the generation the timer was
// scheduled for.
func (c *Cache) evict(key string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.generation == gen {
		delete(c.entries, key)
		metrics.SetCacheEntries(len(c.entries))
	}
}

// Get returns the value stored under key, or false when absent or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		metrics.ObserveCacheLookup("miss")
		return nil, false
	}
	if e.expired(c.clock.Now()) {
		c.removeLocked(key, e)
		metrics.ObserveCacheLookup("expired")
		return nil, false
	}
	metrics.ObserveCacheLookup("hit")
	return e.value, true
}

// Has reports whether a live entry exists for key.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if e.expired(c.clock.Now()) {
		c.removeLocked(key, e)
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		c.removeLocked(key, e)
	}
	return ok
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Size returns the number of stored entries, including expired entries not
// yet evicted.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup eagerly removes every expired entry and returns how many were dropped.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key, e)
			removed++
		}
	}
	return removed
}

// Close stops every pending eviction timer and empties the cache. Later Set
// calls are ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.closed = true
}

func (c *Cache) clearLocked() {
	for key, e := range c.entries {
		c.removeLocked(key, e)
	}
}

func (c *Cache) removeLocked(key string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(c.entries, key)
	metrics.SetCacheEntries(len(c.entries))
}

// Lookup fetches key and asserts its type.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// SearchKey builds the cache key of a search request.
func SearchKey(query string, page, size, topK int) string {
	return fmt.Sprintf("search:%s:%d:%d:%d", query, page, size, topK)
}

// SuggestionsKey builds the cache key of a suggestions request.
func SuggestionsKey(prefix, userID string) string {
	return fmt.Sprintf("suggestions:%s:%s", prefix, userID)
}
