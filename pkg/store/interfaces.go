package store

import (
	"context"

	"wayfarer/pkg/model"
)

// PoiCacheStore durably caches normalized POI candidate sets per bucket
// cache key (spec.md §6's poi_cache table).
type PoiCacheStore interface {
	GetPOIs(ctx context.Context, cacheKey string) ([]model.POI, bool, error)
	SavePOIs(ctx context.Context, cacheKey string, pois []model.POI) error
}

// HistoryStore backs the at-most-once-per-user exposure guarantee
// (spec.md §6's user_poi_history table).
type HistoryStore interface {
	HasSeen(ctx context.Context, userKey, poiKey string) (bool, error)
	ListSeen(ctx context.Context, userKey string) (map[string]struct{}, error)
	MarkSeen(ctx context.Context, userKey, poiKey string) error
}

// ExposureStore is the append-only audit log of every orchestrator
// decision, spoken or silent (spec.md §6's exposure_log table).
type ExposureStore interface {
	AppendExposure(ctx context.Context, rec model.ExposureRecord) error
}

// TasteStore persists per-user/per-profile taste tuning (spec.md §6's
// taste_profiles table).
type TasteStore interface {
	GetTasteProfile(ctx context.Context, id string) (*model.TasteProfile, bool, error)
	SaveTasteProfile(ctx context.Context, p model.TasteProfile) error
}

// CacheStore handles generic key-value caching, used as the durable tier
// behind outbound HTTP/LLM response caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// GeodataRecord represents metadata for a cached geo-bucket tile.
type GeodataRecord struct {
	Key    string
	Lat    float64
	Lon    float64
	Radius int
}

// GeodataStore handles geodata-specific caching with radius metadata,
// the durable tier behind request.Client.PostWithGeodataCache, which the
// Wikidata SPARQL client uses for its tile queries.
type GeodataStore interface {
	GetGeodataCache(ctx context.Context, key string) ([]byte, int, bool)
	SetGeodataCache(ctx context.Context, key string, val []byte, radius int, lat, lon float64) error
	GetGeodataInBounds(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]GeodataRecord, error)
	ListGeodataCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// ArticleStore durably caches fetched encyclopedia articles (C6b).
type ArticleStore interface {
	GetArticle(ctx context.Context, uuid string) (*model.Article, error)
	SaveArticle(ctx context.Context, article *model.Article) error
}

// StateStore handles persistent application state unrelated to caching.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
