package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a small in-memory TTL map. Expired entries are dropped on read
// and by Cleanup.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]item[V]
	ttl   time.Duration
	now   func() time.Time
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		items: make(map[string]item[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(it.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return it.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Cleanup removes every expired entry and returns how many were dropped.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
			n++
		}
	}
	return n
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Key hashes the parts into a stable cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
