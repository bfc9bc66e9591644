package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"wayfarer/pkg/db"
	"wayfarer/pkg/model"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	PoiCacheStore
	HistoryStore
	ExposureStore
	TasteStore
	CacheStore
	GeodataStore
	ArticleStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- POI cache ---

func (s *SQLiteStore) GetPOIs(ctx context.Context, cacheKey string) ([]model.POI, bool, error) {
	var poiJSON string
	err := s.db.QueryRowContext(ctx, "SELECT poi_json FROM poi_cache WHERE cache_key = ?", cacheKey).Scan(&poiJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var pois []model.POI
	if err := json.Unmarshal([]byte(poiJSON), &pois); err != nil {
		return nil, false, err
	}
	return pois, true, nil
}

func (s *SQLiteStore) SavePOIs(ctx context.Context, cacheKey string, pois []model.POI) error {
	data, err := json.Marshal(pois)
	if err != nil {
		return err
	}

	query := `INSERT INTO poi_cache (cache_key, poi_json, updated_at) VALUES (?, ?, ?)
	          ON CONFLICT(cache_key) DO UPDATE SET poi_json=excluded.poi_json, updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, cacheKey, string(data), time.Now())
	return err
}

// --- History ---

func (s *SQLiteStore) HasSeen(ctx context.Context, userKey, poiKey string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM user_poi_history WHERE user_key = ? AND poi_key = ?", userKey, poiKey).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) ListSeen(ctx context.Context, userKey string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT poi_key FROM user_poi_history WHERE user_key = ?", userKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var poiKey string
		if err := rows.Scan(&poiKey); err != nil {
			return nil, err
		}
		seen[poiKey] = struct{}{}
	}
	return seen, rows.Err()
}

func (s *SQLiteStore) MarkSeen(ctx context.Context, userKey, poiKey string) error {
	query := `INSERT INTO user_poi_history (user_key, poi_key, first_seen_at) VALUES (?, ?, ?)
	          ON CONFLICT(user_key, poi_key) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query, userKey, poiKey, time.Now())
	return err
}

// --- Exposure log ---

func (s *SQLiteStore) AppendExposure(ctx context.Context, rec model.ExposureRecord) error {
	query := `INSERT INTO exposure_log
		(created_at, user_id, lat, lng, poi_key, poi_name, poi_source, distance_meters, should_speak, reason, taste_profile_id, story_len)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	createdAt := rec.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		createdAt, rec.UserKey, rec.Lat, rec.Lng, rec.PoiKey, rec.PoiName, rec.PoiSource,
		rec.Distance, rec.ShouldSpeak, rec.Reason, "", rec.StoryLen,
	)
	return err
}

// --- Taste profiles ---

func (s *SQLiteStore) GetTasteProfile(ctx context.Context, id string) (*model.TasteProfile, bool, error) {
	var dataJSON string
	var createdAt, updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT data, created_at, updated_at FROM taste_profiles WHERE id = ?", id).Scan(&dataJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p model.TasteProfile
	if err := json.Unmarshal([]byte(dataJSON), &p); err != nil {
		return nil, false, err
	}
	p.ID = id
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return &p, true, nil
}

func (s *SQLiteStore) SaveTasteProfile(ctx context.Context, p model.TasteProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `INSERT INTO taste_profiles (id, created_at, updated_at, data) VALUES (?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at, data=excluded.data`
	_, err = s.db.ExecContext(ctx, query, p.ID, now, now, string(data))
	return err
}

// --- Generic cache (durable tier behind outbound HTTP/LLM caching) ---

// Get implements cache.Cacher.
func (s *SQLiteStore) Get(key string) ([]byte, bool) {
	return s.GetCache(context.Background(), key)
}

// Set implements cache.Cacher.
func (s *SQLiteStore) Set(key string, val []byte) error {
	return s.SetCache(context.Background(), key, val)
}

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if err != nil {
		return nil, false
	}

	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		if decompressed, err := decompress(val); err == nil {
			return decompressed, true
		}
	}

	return val, true
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	if compressed, err := compress(val); err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- Compression pooling ---

var (
	gzipWriterPool = sync.Pool{
		New: func() any {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() any {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// --- Geodata cache ---

func (s *SQLiteStore) GetGeodataCache(ctx context.Context, key string) (data []byte, radius int, found bool) {
	err := s.db.QueryRowContext(ctx, "SELECT data, radius_m FROM cache_geodata WHERE key = ?", key).Scan(&data, &radius)
	if err != nil {
		return nil, 0, false
	}

	if len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b {
		if decompressed, err := decompress(data); err == nil {
			return decompressed, radius, true
		}
	}

	return data, radius, true
}

func (s *SQLiteStore) SetGeodataCache(ctx context.Context, key string, val []byte, radius int, lat, lon float64) error {
	if compressed, err := compress(val); err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache_geodata (key, data, radius_m, lat, lon, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, radius, lat, lon, time.Now())
	return err
}

func (s *SQLiteStore) GetGeodataInBounds(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]GeodataRecord, error) {
	query := `SELECT key, lat, lon, radius_m FROM cache_geodata
	          WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`

	rows, err := s.db.QueryContext(ctx, query, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []GeodataRecord
	for rows.Next() {
		var r GeodataRecord
		if err := rows.Scan(&r.Key, &r.Lat, &r.Lon, &r.Radius); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *SQLiteStore) ListGeodataCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache_geodata WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- Articles ---

func (s *SQLiteStore) GetArticle(ctx context.Context, uuid string) (*model.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT uuid, title, url, names, text, lengths, thumbnail_url, created_at FROM wikipedia_articles WHERE uuid = ?`, uuid)

	var a model.Article
	var namesJSON, lengthsJSON string
	err := row.Scan(&a.UUID, &a.Title, &a.URL, &namesJSON, &a.Text, &lengthsJSON, &a.ThumbnailURL, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if namesJSON != "" {
		_ = json.Unmarshal([]byte(namesJSON), &a.Names)
	}
	if lengthsJSON != "" {
		_ = json.Unmarshal([]byte(lengthsJSON), &a.Lengths)
	}
	return &a, nil
}

func (s *SQLiteStore) SaveArticle(ctx context.Context, a *model.Article) error {
	namesJSON, _ := json.Marshal(a.Names)
	lengthsJSON, _ := json.Marshal(a.Lengths)
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT OR REPLACE INTO wikipedia_articles (
		uuid, title, url, names, text, lengths, thumbnail_url, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.UUID, a.Title, a.URL, string(namesJSON), a.Text, string(lengthsJSON), a.ThumbnailURL, createdAt,
	)
	return err
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
