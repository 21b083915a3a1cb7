// Package cache memoizes derived results (filtered datasets, statistics)
// keyed by dataset fingerprint, operation and parameters.
package cache

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Stats reports cache activity.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Entries int `json:"entries"`
}

type entry struct {
	dataset string
	value   any
}

// Cache stores computed values until Reset. Concurrent callers asking for the
// same key share one computation; errors are returned but never stored.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	gen     uint64
	hits    int
	misses  int

	group singleflight.Group
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// GetOrCompute returns the value stored for key, running fn to produce it on
// the first request. fn runs at most once per key between resets, provided it
// succeeds.
func (c *Cache) GetOrCompute(key Key, fn func() (any, error)) (any, error) {
	k := key.String()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		c.hits++
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(k, func() (any, error) {
		c.mu.Lock()
		if e, ok := c.entries[k]; ok {
			c.hits++
			c.mu.Unlock()
			return e.value, nil
		}
		c.misses++
		gen := c.gen
		c.mu.Unlock()

		v, err := fn()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// a Reset during fn means v belongs to a dataset that is gone
		if c.gen == gen {
			c.entries[k] = entry{dataset: key.Dataset, value: v}
		}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Do is the typed form of GetOrCompute.
func Do[V any](c *Cache, key Key, fn func() (V, error)) (V, error) {
	v, err := c.GetOrCompute(key, func() (any, error) { return fn() })
	if err != nil {
		var zero V
		return zero, err
	}
	out, ok := v.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache: entry for %s holds %T", key.Op, v)
	}
	return out, nil
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.gen++
}

// Invalidate drops the entries computed for one dataset fingerprint and
// returns how many were removed.
func (c *Cache) Invalidate(dataset string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.dataset == dataset {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}
