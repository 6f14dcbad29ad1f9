// Package cache implements the response cache (C2): a TTL-bounded,
// size-bounded mapping from request fingerprint to cached JSON-RPC
// result, built on top of github.com/jellydator/ttlcache/v3 the same
// way controlplane/telemetry/internal/data/device/provider.go wraps it
// — a ttlcache store plus an engine-owned mutex for the compound
// sweep-and-evict operation the library doesn't provide on its own.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is the engine-wide TTL applied to every cache entry.
const DefaultTTL = 365 * 24 * time.Hour

// DefaultCapacity is the engine-wide entry cap.
const DefaultCapacity = 1_000_000

type entry struct {
	result     json.RawMessage
	insertedAt time.Time
}

// Cache is the shared, mutable response cache. All operations are safe
// for concurrent use. The lock is held only for the duration of the
// map operation itself, never across I/O.
type Cache struct {
	mu       sync.Mutex
	store    *ttlcache.Cache[string, entry]
	ttl      time.Duration
	capacity int
}

// New builds a Cache with the given TTL and capacity. A non-positive
// ttl or capacity falls back to the package defaults.
func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		store:    ttlcache.New[string, entry](ttlcache.WithTTL[string, entry](ttl)),
		ttl:      ttl,
		capacity: capacity,
	}
}

// Get returns the cached result for fp, if present and not expired.
// An expired entry is treated as a miss and removed opportunistically.
func (c *Cache) Get(fp string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.store.Get(fp)
	if item == nil {
		return nil, false
	}
	e := item.Value()
	if time.Since(e.insertedAt) > c.ttl {
		c.store.Delete(fp)
		return nil, false
	}
	return e.result, true
}

// Put inserts or replaces the entry for fp, then sweeps expired
// entries and enforces the capacity cap by evicting the oldest
// insertions first, ties broken by fingerprint.
func (c *Cache) Put(fp string, result json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(fp, entry{result: result, insertedAt: time.Now()}, c.ttl)
	c.sweepAndEvictLocked()
}

func (c *Cache) sweepAndEvictLocked() {
	c.store.DeleteExpired()

	for c.store.Len() > c.capacity {
		items := c.store.Items()
		var oldestKey string
		var oldestAt time.Time
		found := false
		for k, it := range items {
			e := it.Value()
			if !found || e.insertedAt.Before(oldestAt) || (e.insertedAt.Equal(oldestAt) && k < oldestKey) {
				oldestKey, oldestAt, found = k, e.insertedAt, true
			}
		}
		if !found {
			return
		}
		c.store.Delete(oldestKey)
	}
}

// Len reports the current number of entries, including any not yet
// opportunistically swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Cap reports the configured capacity.
func (c *Cache) Cap() int {
	return c.capacity
}
