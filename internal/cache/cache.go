package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	deadline time.Time
}

// Cache is a small in-memory TTL cache. Expired entries are dropped lazily
// on read.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
}

// New creates an empty Cache instance
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]entry[V])}
}

// Set stores a value under key for the given TTL
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, deadline: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Get retrieves a value. Returns false if not found or expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}

	if time.Now().After(e.deadline) {
		c.Delete(key)
		var zero V
		return zero, false
	}

	return e.value, true
}

// Delete removes a key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Cleanup removes all expired entries
func (c *Cache[K, V]) Cleanup() {
	now := time.Now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.deadline) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
