package engine

import (
	"context"
	"sync"
	"time"
)

// CatalogCache memoizes an expensive catalog query (sdkmanager --list takes
// seconds) behind a freshness window much longer than the device refresh
// interval. Concurrent callers during a reload share the single fetch.
type CatalogCache[T any] struct {
	mu      sync.Mutex
	fetch   func(ctx context.Context) (T, error)
	expiry  time.Duration
	value   T
	loaded  time.Time
	hasData bool
}

func NewCatalogCache[T any](expiry time.Duration, fetch func(ctx context.Context) (T, error)) *CatalogCache[T] {
	return &CatalogCache[T]{fetch: fetch, expiry: expiry}
}

// Get returns the cached value while it is fresh, refetching otherwise. A
// failed refetch falls back to stale data when any exists.
func (c *CatalogCache[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasData && time.Since(c.loaded) < c.expiry {
		return c.value, nil
	}

	value, err := c.fetch(ctx)
	if err != nil {
		if c.hasData {
			return c.value, nil
		}
		var zero T
		return zero, err
	}
	c.value = value
	c.loaded = time.Now()
	c.hasData = true
	return value, nil
}

// Invalidate forces the next Get to refetch, used after a create or delete
// changes what the catalogs would report.
func (c *CatalogCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasData = false
}
