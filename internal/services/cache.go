package services

import (
	"sync"
	"time"
)

// Cache is a generic in-memory store with optional expiry. A ttl of
// zero keeps entries until they are overwritten, which is how the
// screener retains the last result per index across failed refreshes.
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*cacheItem[V]
	ttl   time.Duration
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// NewCache constructs a cache. When ttl > 0 a background sweep removes
// expired entries.
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]*cacheItem[V]),
		ttl:   ttl,
	}

	if ttl > 0 {
		go c.cleanup()
	}

	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || (c.ttl > 0 && time.Now().After(item.expiration)) {
		var zero V
		return zero, false
	}

	return item.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[V]{value: value}
	if c.ttl > 0 {
		item.expiration = time.Now().Add(c.ttl)
	}
	c.items[key] = item
}

func (c *Cache[K, V]) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, item := range c.items {
			if now.After(item.expiration) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}
