package generic

import (
	"sync"
	"time"
)

// =============================================================================
// CACHE - Short-TTL read cache with explicit invalidation
// =============================================================================

// Cache is a thread-safe in-memory cache with lazy expiration. A zero TTL
// disables caching: Get always misses and Set is a no-op.
//
// Stores wrap their reads with a Cache and call Invalidate or Clear in the
// same call that performs a write, so readers never see a value older than
// the last write made through that store.
type Cache[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[K]cacheEntry[V]
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]cacheEntry[V]),
	}
}

// WithClock replaces the time source. Tests only.
func (c *Cache[K, V]) WithClock(now func() time.Time) *Cache[K, V] {
	c.now = now
	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *Cache[K, V]) Invalidate(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateWhere removes every entry whose key matches.
func (c *Cache[K, V]) InvalidateWhere(match func(K) bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache[K, V]) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]cacheEntry[V])
}

func (c *Cache[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
