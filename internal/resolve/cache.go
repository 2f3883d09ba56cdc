package resolve

import "sync"

// Cache remembers successful resolutions per normalized city name for the
// lifetime of one run. It is injected into the Engine at construction so
// callers decide whether scenarios share a cache or get isolated ones.
// Only complete, successful results are ever stored.
type Cache struct {
	mu      sync.Mutex
	results map[string]Result
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{results: make(map[string]Result)}
}

// Get returns the cached result for a normalized name.
func (c *Cache) Get(name string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[name]
	return r, ok
}

// Put stores a successful result. Failed or partial results are rejected so
// an aborted resolution can never poison later lookups.
func (c *Cache) Put(name string, r Result) {
	if !r.OK() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.results[name]; exists {
		return // append-only within a run
	}
	c.results[name] = r
}

// Len returns the number of cached resolutions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}
