// Package cache provides the in-process value cache used by the attribute
// resolver. Entries are keyed by composite "<entity>.<attribute>" strings and
// share a single fixed time-to-live.
package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

// entry is a cached value and the moment it was stored.
type entry struct {
	value    float64
	storedAt time.Time
}

// Stats is a snapshot of cache activity counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Expirations uint64
	Entries     int
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache is a TTL-bounded key/value store safe for concurrent use.
// The mutex only protects the map; callers resolving different keys never
// wait on each other beyond a single map operation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time

	hits        uint64
	misses      uint64
	expirations uint64
}

// New creates a cache whose entries expire ttl after they were set.
// A negative ttl is treated as zero.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it is no older than the TTL.
// A stale entry is evicted and reported as absent.
func (c *Cache) Get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.misses++
		return 0, false
	}

	if c.expired(ent, c.now()) {
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return 0, false
	}

	c.hits++
	return ent.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *Cache) Set(key string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, storedAt: c.now()}
}

// Clear removes all entries. Counters are left untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

// Sweep evicts every entry older than the TTL and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, ent := range c.entries {
		if c.expired(ent, now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.expirations += uint64(removed)
	return removed
}

// Len returns the number of stored entries, including stale ones not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Expirations: c.expirations,
		Entries:     len(c.entries),
	}
}

// StartJanitor runs Sweep every interval until ctx is cancelled.
// The returned channel is closed once the janitor goroutine has exited.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					log.Printf("cache: swept %d expired entries", n)
				}
			}
		}
	}()
	return done
}

// expired reports whether ent is older than the TTL at now.
// Must be called with c.mu held.
func (c *Cache) expired(ent entry, now time.Time) bool {
	return now.Sub(ent.storedAt) > c.ttl
}
