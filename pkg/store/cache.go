package store

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/critiqdev/critiq/pkg/observability"
)

const (
	cacheKeyCategories = "categories"
	cacheKeyGenres     = "genres"
)

// catalogCache is an expiring LRU in front of catalog reads. All methods
// are safe on a nil receiver so the Store can run without a cache.
type catalogCache struct {
	lru     *expirable.LRU[string, interface{}]
	metrics *observability.Metrics
}

func newCatalogCache(size int, ttl time.Duration, metrics *observability.Metrics) *catalogCache {
	return &catalogCache{
		lru:     expirable.NewLRU[string, interface{}](size, nil, ttl),
		metrics: metrics,
	}
}

func titleKey(id int64) string {
	return fmt.Sprintf("title:%d", id)
}

func (c *catalogCache) get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if c.metrics != nil {
		if ok {
			c.metrics.CacheHitsTotal.WithLabelValues("catalog").Inc()
		} else {
			c.metrics.CacheMissesTotal.WithLabelValues("catalog").Inc()
		}
	}
	return v, ok
}

func (c *catalogCache) set(key string, v interface{}) {
	if c == nil {
		return
	}
	c.lru.Add(key, v)
}

func (c *catalogCache) remove(key string) {
	if c == nil {
		return
	}
	c.lru.Remove(key)
}

func (c *catalogCache) getCategories() ([]Category, bool) {
	if v, ok := c.get(cacheKeyCategories); ok {
		if categories, ok := v.([]Category); ok {
			return categories, true
		}
	}
	return nil, false
}

func (c *catalogCache) setCategories(categories []Category) {
	c.set(cacheKeyCategories, categories)
}

func (c *catalogCache) invalidateCategories() {
	c.remove(cacheKeyCategories)
}

func (c *catalogCache) getGenres() ([]Genre, bool) {
	if v, ok := c.get(cacheKeyGenres); ok {
		if genres, ok := v.([]Genre); ok {
			return genres, true
		}
	}
	return nil, false
}

func (c *catalogCache) setGenres(genres []Genre) {
	c.set(cacheKeyGenres, genres)
}

func (c *catalogCache) invalidateGenres() {
	c.remove(cacheKeyGenres)
}

func (c *catalogCache) getTitle(id int64) (*Title, bool) {
	if v, ok := c.get(titleKey(id)); ok {
		if t, ok := v.(*Title); ok {
			return t, true
		}
	}
	return nil, false
}

func (c *catalogCache) setTitle(t *Title) {
	c.set(titleKey(t.ID), t)
}

func (c *catalogCache) invalidateTitle(id int64) {
	c.remove(titleKey(id))
}

// invalidateTitles drops every cached title. Ratings and category links
// shift when reviews or catalog entries change under them, so single-key
// invalidation is not enough.
func (c *catalogCache) invalidateTitles() {
	if c == nil {
		return
	}
	for _, key := range c.lru.Keys() {
		if len(key) > 6 && key[:6] == "title:" {
			c.lru.Remove(key)
		}
	}
}
