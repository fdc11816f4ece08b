// Package dedupe tracks recently ingested article keys so the worker can
// skip articles it has already chunked and embedded.
package dedupe

import (
	"sync"
	"time"
)

type record struct {
	key string
	at  time.Time
}

// Cache keeps a bounded set of article keys observed inside a TTL window.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	order    []record
	capacity int
	ttl      time.Duration
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		seen:     make(map[string]time.Time, capacity),
		order:    make([]record, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// IsSeen reports whether the key was recorded inside the ttl window. It does
// not record the key; use MarkSeen for that.
func (c *Cache) IsSeen(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[key]
	return ok && now.Sub(at) <= c.ttl
}

// MarkSeen records that an article key has been ingested.
func (c *Cache) MarkSeen(key string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen[key] = now
	c.order = append(c.order, record{key: key, at: now})
	c.evict(now)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) evict(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.seen) > c.capacity || c.order[0].at.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		// Only drop the map entry if it was not refreshed after this record.
		if at, ok := c.seen[oldest.key]; ok && at.Equal(oldest.at) {
			delete(c.seen, oldest.key)
		}
	}
}
