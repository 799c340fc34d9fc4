package resolver

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"mcmappings/internal/shared/observability"
)

type cacheEntry struct {
	generation uint64
	xref       *CrossReference // nil records a miss
}

// resultCache keeps resolved cross-references until the store's write
// generation moves past the one they were read at.
type resultCache struct {
	entries *lru.Cache[string, cacheEntry]
}

func newResultCache(size int) (*resultCache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{entries: entries}, nil
}

func (c *resultCache) get(key string, generation uint64) (*CrossReference, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.entries.Get(key)
	if !ok {
		observability.ResolverCacheMissesTotal.Inc()
		return nil, false
	}
	if entry.generation != generation {
		c.entries.Remove(key)
		observability.ResolverCacheMissesTotal.Inc()
		return nil, false
	}
	observability.ResolverCacheHitsTotal.Inc()
	return entry.xref.clone(), true
}

func (c *resultCache) add(key string, generation uint64, xref *CrossReference) {
	if c == nil {
		return
	}
	c.entries.Add(key, cacheEntry{generation: generation, xref: xref.clone()})
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *resultCache) purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}
