// Package cache implements the process-local TTL cache (C2): a generic
// keyed get/set store with lazy expiry on read, plus a thin adapter onto
// the durable geodata/cache tables for pkg/request's transparent HTTP
// response caching.
package cache

import (
	"context"
)

// Cacher is the durable-store-backed cache interface consumed by
// pkg/request. It is deliberately narrow: byte blobs in, byte blobs out.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error

	// Geodata-specific: routes to cache_geodata with radius metadata so
	// that cached POI-query bounding boxes can be inspected/evicted
	// independently of opaque blobs.
	GetGeodataCache(ctx context.Context, key string) (data []byte, radiusM int, found bool)
	SetGeodataCache(ctx context.Context, key string, val []byte, radiusM int, lat, lon float64) error
}

// DurableStore is the subset of pkg/store.Store the cache adapter needs.
type DurableStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	GetGeodataCache(ctx context.Context, key string) ([]byte, int, bool)
	SetGeodataCache(ctx context.Context, key string, val []byte, radius int, lat, lon float64) error
}

// StoreBackedCache implements Cacher over a durable store handle. When
// store is nil (durable store absent at startup) every call is a miss /
// no-op, so the rest of the system degrades to in-memory-only operation.
type StoreBackedCache struct {
	store DurableStore
}

// NewStoreBackedCache creates a cache.Cacher backed by a durable store.
// Pass nil to get an always-miss cache (no durable store configured).
func NewStoreBackedCache(s DurableStore) *StoreBackedCache {
	return &StoreBackedCache{store: s}
}

func (c *StoreBackedCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	return c.store.GetCache(ctx, key)
}

func (c *StoreBackedCache) SetCache(ctx context.Context, key string, val []byte) error {
	if c.store == nil {
		return nil
	}
	return c.store.SetCache(ctx, key, val)
}

func (c *StoreBackedCache) GetGeodataCache(ctx context.Context, key string) ([]byte, int, bool) {
	if c.store == nil {
		return nil, 0, false
	}
	return c.store.GetGeodataCache(ctx, key)
}

func (c *StoreBackedCache) SetGeodataCache(ctx context.Context, key string, val []byte, radiusM int, lat, lon float64) error {
	if c.store == nil {
		return nil
	}
	return c.store.SetGeodataCache(ctx, key, val, radiusM, lat, lon)
}
