package weather

import (
	"encoding/json"
	"sync"
	"time"
)

// Cache is an in-memory TTL cache for upstream payloads. Expired
// entries are overwritten on the next successful fetch.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	data      json.RawMessage
	expiresAt time.Time
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached payload for key if present and fresh.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.data, true
}

// Set stores a payload under key for ttl.
func (c *Cache) Set(key string, data json.RawMessage, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		data:      data,
		expiresAt: c.now().Add(ttl),
	}
}
