// Package cache provides a small bounded cache with coarse-grained
// eviction: when the cache fills up, the oldest half of the entries (by
// insertion order) is dropped in one sweep. This trades eviction precision
// for simplicity; strict LRU is not needed for embedding reuse.
package cache

import "sync"

// DefaultMaxEntries bounds the cache when no size is configured.
const DefaultMaxEntries = 1000

// Cache is a bounded insertion-order cache. Concurrent reads of different
// keys are safe; concurrent writes to the same key are last-write-wins.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]V
	order      []string
	maxEntries int
}

// New creates a cache holding at most maxEntries values.
// Non-positive sizes fall back to DefaultMaxEntries.
func New[V any](maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache[V]{
		entries:    make(map[string]V, maxEntries),
		maxEntries: maxEntries,
	}
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Add stores value under key, evicting the oldest half of the cache first
// when the insertion would exceed the configured bound.
func (c *Cache[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestHalfLocked()
	}
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = value
}

// GetOrCompute returns the cached value for key, computing and caching it
// on a miss. Concurrent callers may compute the same key redundantly; the
// last write wins, which is acceptable for deterministic compute functions.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Add(key, v)
	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldestHalfLocked drops the oldest half of the entries in one pass.
// Callers must hold the write lock.
func (c *Cache[V]) evictOldestHalfLocked() {
	keep := c.maxEntries / 2
	drop := len(c.order) - keep
	if drop <= 0 {
		drop = 1
	}
	for _, key := range c.order[:drop] {
		delete(c.entries, key)
	}
	c.order = append(c.order[:0], c.order[drop:]...)
}
