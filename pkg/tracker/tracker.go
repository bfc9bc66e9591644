// Package tracker implements the provider hit/miss counter (C16): a
// lightweight in-memory stats collector exposed via a debug endpoint.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per upstream provider name.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider. Fields are updated
// atomically so Snapshot can read them without holding the map lock.
type ProviderStats struct {
	CacheHits   int64
	CacheMisses int64
	APISuccess  int64
	APIFailures int64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{stats: make(map[string]*ProviderStats)}
}

func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

func (t *Tracker) TrackCacheHit(provider string)   { atomic.AddInt64(&t.getStats(provider).CacheHits, 1) }
func (t *Tracker) TrackCacheMiss(provider string)  { atomic.AddInt64(&t.getStats(provider).CacheMisses, 1) }
func (t *Tracker) TrackAPISuccess(provider string) { atomic.AddInt64(&t.getStats(provider).APISuccess, 1) }
func (t *Tracker) TrackAPIFailure(provider string) { atomic.AddInt64(&t.getStats(provider).APIFailures, 1) }

// Snapshot returns a point-in-time copy of the stats for every provider
// seen so far.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = ProviderStats{
			CacheHits:   atomic.LoadInt64(&v.CacheHits),
			CacheMisses: atomic.LoadInt64(&v.CacheMisses),
			APISuccess:  atomic.LoadInt64(&v.APISuccess),
			APIFailures: atomic.LoadInt64(&v.APIFailures),
		}
	}
	return result
}
