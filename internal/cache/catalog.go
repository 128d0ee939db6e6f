package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	ports "timesheet/internal/sheets"
)

const catalogKey = "catalog"

type catalog struct {
	projects  []string
	documents []string
}

// CatalogCache serves the project/document catalog from memory and refreshes
// it from the backend once the TTL lapses. Concurrent misses share one read.
type CatalogCache struct {
	source ports.CatalogReader
	lru    *LRUCache[catalog]
	group  singleflight.Group
}

var _ ports.CatalogReader = (*CatalogCache)(nil)

func NewCatalogCache(source ports.CatalogReader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		source: source,
		lru:    NewLRUCache[catalog](1, ttl),
	}
}

func (c *CatalogCache) List(ctx context.Context) ([]string, []string, error) {
	if v, ok := c.lru.Get(catalogKey); ok {
		return clone(v.projects), clone(v.documents), nil
	}
	v, err, _ := c.group.Do(catalogKey, func() (any, error) {
		projects, documents, err := c.source.List(ctx)
		if err != nil {
			return nil, err
		}
		cat := catalog{projects: projects, documents: documents}
		c.lru.Set(catalogKey, cat)
		return cat, nil
	})
	if err != nil {
		return nil, nil, err
	}
	cat := v.(catalog)
	return clone(cat.projects), clone(cat.documents), nil
}

// Invalidate forces the next List to hit the backend.
func (c *CatalogCache) Invalidate() {
	c.lru.Delete(catalogKey)
}

// CleanExpired lets a Manager sweep the catalog entry.
func (c *CatalogCache) CleanExpired() int {
	return c.lru.CleanExpired()
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
