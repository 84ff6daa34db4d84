// Package cache holds last-known-good collection snapshots keyed by
// collection name, each with its own TTL. Entries are replaced wholesale on
// Set and dropped on expiry; a Get never returns partially-expired or
// merged data.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	payload  any
	storedAt time.Time
	ttl      time.Duration
}

// Cache is safe for concurrent use. It lives for the process; entries leave
// only through Invalidate or TTL expiry observed on read.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Key builds a collection cache key, optionally scoped by owner id.
func Key(collection, owner string) string {
	if owner == "" {
		return collection
	}
	return collection + ":" + owner
}

// Get returns the payload for key if it is still fresh. An expired entry is
// removed and reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= e.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.payload, true
}

// Set replaces the payload for key atomically.
func (c *Cache) Set(key string, payload any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{payload: payload, storedAt: c.now(), ttl: ttl}
}

// Invalidate removes the entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix removes every entry whose key starts with prefix. Used to
// drop all owner-scoped collections at once.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}
