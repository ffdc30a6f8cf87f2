// Package enrich drives enrichment runs: a Source per upstream system, an
// engine that brackets each run with a ledger entry, a run-scoped lookup
// cache, and the periodic checkpointer.
package enrich

// Result distinguishes a resolved cache value from the explicit negative
// marker: looked up, definitively nothing found.
type Result[V any] struct {
	Value V
	Found bool
}

// Cache memoizes lookups for the duration of one run, keyed by plant
// identity. One value per key: the first writer wins and later writes are
// ignored, so all units of a plant see the same answer. Never persisted.
// Owned by the single pipeline goroutine; no locking.
type Cache[V any] struct {
	entries map[string]Result[V]
}

// NewCache creates an empty run-scoped cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]Result[V])}
}

// Get returns the cached result for key and whether any result (positive or
// negative) has been recorded.
func (c *Cache[V]) Get(key string) (Result[V], bool) {
	res, ok := c.entries[key]
	return res, ok
}

// Put records a resolved value. A no-op if the key already has a result.
func (c *Cache[V]) Put(key string, value V) {
	if _, taken := c.entries[key]; taken {
		return
	}
	c.entries[key] = Result[V]{Value: value, Found: true}
}

// PutMiss records a definitive absence. A no-op if the key already has a
// result. Transient lookup failures must not be recorded at all.
func (c *Cache[V]) PutMiss(key string) {
	if _, taken := c.entries[key]; taken {
		return
	}
	c.entries[key] = Result[V]{}
}

// Len returns the number of recorded keys, misses included.
func (c *Cache[V]) Len() int { return len(c.entries) }
