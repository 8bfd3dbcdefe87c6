package weather

import (
	"sync"
	"time"
)

// Entry is one cached value and the time it was fetched. Entries are
// replaced whole, never updated in place.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
}

// Cache maps keys to at most one Entry each. It knows nothing about
// fetching; staleness is decided by the caller through IsStale.
type Cache[V any] struct {
	mu sync.RWMutex
	m  map[string]Entry[V]
}

func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		m: make(map[string]Entry[V]),
	}
}

// Get returns the entry for key whether or not it is stale.
func (c *Cache[V]) Get(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.m[key]
	return entry, ok
}

func (c *Cache[V]) Put(key string, value V, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = Entry[V]{Value: value, FetchedAt: now}
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// IsStale reports whether entry has been held for at least ttl, counted in
// whole seconds. A zero ttl makes every entry stale.
func IsStale[V any](entry Entry[V], ttl time.Duration, now time.Time) bool {
	age := int64(now.Sub(entry.FetchedAt) / time.Second)
	return age >= int64(ttl/time.Second)
}
