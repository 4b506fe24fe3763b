// Package cache provides the bounded in-memory cache shared by the geocoder
// decorator and the source loader.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 128

// LRU is a thread-safe least-recently-used cache that counts hits and misses.
type LRU[K comparable, V any] struct {
	entries *lru.Cache[K, V]
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache holding at most size entries.
func New[K comparable, V any](size int) *LRU[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[K, V](size)
	return &LRU[K, V]{entries: entries}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores value under key, evicting the least recently used entry when full.
// It reports whether an eviction happened.
func (c *LRU[K, V]) Put(key K, value V) bool {
	return c.entries.Add(key, value)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	return c.entries.Len()
}

// Stats returns the cumulative hit and miss counts.
func (c *LRU[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
