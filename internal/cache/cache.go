// Package cache stores rendered images in a bounded in-memory LRU.
package cache

import (
	"bytes"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a thread-safe least-recently-used store of rendered images.
// Get on a hit and Put both mark the entry as most recently used; inserting
// into a full cache evicts the single least recently used entry.
//
// Values are copied in and out, so callers never share memory with the cache.
type Cache struct {
	lru      *lru.Cache[Key, []byte]
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
}

// New creates a cache holding at most capacity entries.
func New(capacity int) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}

	c := &Cache{capacity: capacity}

	l, err := lru.NewWithEvict(capacity, func(Key, []byte) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	c.lru = l

	return c, nil
}

// Get returns a copy of the value stored under key.
func (c *Cache) Get(key Key) ([]byte, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return bytes.Clone(v), true
}

// Put stores a copy of value under key.
func (c *Cache) Put(key Key, value []byte) {
	c.lru.Add(key, bytes.Clone(value))
}

// Contains reports whether key is cached without touching its recency.
func (c *Cache) Contains(key Key) bool {
	return c.lru.Contains(key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge removes every entry. Purged entries are counted as evictions.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.lru.Len(),
		Capacity:  c.capacity,
	}
}
