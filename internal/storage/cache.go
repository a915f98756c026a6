package storage

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	data      any
	timestamp time.Time
	ttl       time.Duration
}

// Cache is a session-scoped read-through cache. Entries carry the time
// they were stored and a time-to-live that is enforced on read, not on
// write, so stale entries simply miss on the next lookup.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Set stores data under key with the given time-to-live.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{data: data, timestamp: c.now(), ttl: ttl}
}

// Get returns the cached data for key if it has not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) > entry.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.data, true
}

// Invalidate drops entries whose key contains pattern; an empty pattern
// clears the whole cache.
func (c *Cache) Invalidate(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of live plus expired entries still held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
