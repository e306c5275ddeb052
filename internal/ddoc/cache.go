package ddoc

import (
	"sort"
	"sync"
)

// ModuleCache maps resolved module ids to exports values.
type ModuleCache struct {
	mu      sync.RWMutex
	entries map[string]interface{}
}

// NewModuleCache creates an empty cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{entries: make(map[string]interface{})}
}

// Get returns the cached exports for id.
func (c *ModuleCache) Get(id string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

// Put stores exports for id, replacing any placeholder.
func (c *ModuleCache) Put(id string, exports interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = exports
}

// Len returns the number of entries.
func (c *ModuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IDs returns the cached module ids in sorted order.
func (c *ModuleCache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Caches holds the module caches of one execution context, one per
// document. Exports values belong to the context that produced them, so
// the table lives and dies with that context rather than with the
// document.
type Caches struct {
	mu     sync.Mutex
	caches map[*Document]*ModuleCache
}

// NewCaches creates an empty table.
func NewCaches() *Caches {
	return &Caches{caches: make(map[*Document]*ModuleCache)}
}

// For returns the cache for doc, creating it on first use.
func (c *Caches) For(doc *Document) *ModuleCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	cache, ok := c.caches[doc]
	if !ok {
		cache = NewModuleCache()
		c.caches[doc] = cache
	}
	return cache
}

// Len returns the number of documents with a cache.
func (c *Caches) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.caches)
}
