// Package cache provides the process-lifetime memo caches used by the
// cleaning agent and the search enricher. Entries are keyed by the
// canonical serialization of their input (record or query text).
package cache

import (
	"sync"
	"sync/atomic"
)

// Memo is a concurrent-safe LRU cache. A zero capacity means effectively
// unbounded for any realistic batch; eviction only kicks in when a
// positive capacity is configured.
type Memo[V any] struct {
	mu         sync.Mutex
	entries    map[string]V
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
}

// Stats contains cache performance counters.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a Memo cache. maxEntries <= 0 disables eviction.
func New[V any](maxEntries int) *Memo[V] {
	return &Memo[V]{
		entries:    make(map[string]V),
		maxEntries: maxEntries,
	}
}

// Get retrieves a cached value.
func (c *Memo[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return v, true
}

// Put stores a value, evicting the oldest entry when at capacity.
// Concurrent writers for the same key are first-writer-wins: a key that
// is already present is left untouched, so memoized results stay stable.
func (c *Memo[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = value
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *Memo[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache performance counters.
func (c *Memo[V]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *Memo[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
