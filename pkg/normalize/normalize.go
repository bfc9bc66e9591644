// Package normalize implements the POI normalizer (C5): de-duplicates
// the union of source-adapter output and caches the result per query
// bucket, grounded on the teacher's geo-bucketed TTL caching pattern.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"wayfarer/pkg/cache"
	"wayfarer/pkg/geo"
	"wayfarer/pkg/model"
)

// Normalizer de-duplicates POI candidates and caches the result per
// geo bucket.
type Normalizer struct {
	cache *cache.TTLCache[[]model.POI]
	ttl   time.Duration
}

// New creates a Normalizer with the given geo-bucket cache TTL.
func New(ttl time.Duration) *Normalizer {
	return &Normalizer{
		cache: cache.New[[]model.POI](),
		ttl:   ttl,
	}
}

// Dedupe removes duplicates keyed by (lowercased label, lat rounded to
// 4dp, lng rounded to 4dp); the first occurrence wins and input order
// is preserved.
func Dedupe(candidates []model.POI) []model.POI {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]model.POI, 0, len(candidates))
	for _, poi := range candidates {
		key := dedupeKey(poi)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, poi)
	}
	return out
}

func dedupeKey(poi model.POI) string {
	return fmt.Sprintf("%s|%.4f|%.4f", strings.ToLower(poi.Label), poi.Lat, poi.Lng)
}

// Normalize returns the deduped candidate set for the geo bucket at
// (lat, lng, radiusM), serving it from cache within the TTL. fetch is
// only invoked on a cache miss, so two identical queries for the same
// bucket trigger zero additional adapter calls (spec.md P6) - the
// caller must not fetch candidates before calling Normalize.
func (n *Normalizer) Normalize(lat, lng float64, radiusM int, fetch func() []model.POI) []model.POI {
	key := geo.BucketKey(lat, lng, radiusM)
	if cached, ok := n.cache.Get(key); ok {
		return cached
	}

	deduped := Dedupe(fetch())
	n.cache.Set(key, deduped, n.ttl)
	return deduped
}
