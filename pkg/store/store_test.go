package store

import (
	"context"
	"path/filepath"
	"testing"

	"wayfarer/pkg/db"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) (*SQLiteStore, func()) {
	t.Helper()
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}

	store := NewSQLiteStore(d)
	cleanup := func() { d.Close() }
	return store, cleanup
}

// =============================================================================
// CacheStore Tests
// =============================================================================

func TestCacheStore_HasCache(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(s *SQLiteStore)
		key   string
		want  bool
	}{
		{
			name:  "key not found",
			setup: func(s *SQLiteStore) {},
			key:   "missing_key",
			want:  false,
		},
		{
			name: "key found",
			setup: func(s *SQLiteStore) {
				_ = s.SetCache(ctx, "existing_key", []byte("value"))
			},
			key:  "existing_key",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := setupTestStore(t)
			defer cleanup()
			tt.setup(store)

			got, err := store.HasCache(ctx, tt.key)
			if err != nil {
				t.Fatalf("HasCache() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HasCache() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheStore_ListCacheKeys(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(s *SQLiteStore)
		prefix  string
		wantLen int
	}{
		{
			name:    "empty cache",
			setup:   func(s *SQLiteStore) {},
			prefix:  "wd_",
			wantLen: 0,
		},
		{
			name: "matching prefix",
			setup: func(s *SQLiteStore) {
				_ = s.SetCache(ctx, "wd_tile_1", []byte("a"))
				_ = s.SetCache(ctx, "wd_tile_2", []byte("b"))
				_ = s.SetCache(ctx, "other_key", []byte("c"))
			},
			prefix:  "wd_",
			wantLen: 2,
		},
		{
			name: "no matching prefix",
			setup: func(s *SQLiteStore) {
				_ = s.SetCache(ctx, "foo", []byte("a"))
				_ = s.SetCache(ctx, "bar", []byte("b"))
			},
			prefix:  "baz_",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := setupTestStore(t)
			defer cleanup()
			tt.setup(store)

			got, err := store.ListCacheKeys(ctx, tt.prefix)
			if err != nil {
				t.Fatalf("ListCacheKeys() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("ListCacheKeys() got %d keys, want %d", len(got), tt.wantLen)
			}
		})
	}
}

// =============================================================================
// GeodataStore Tests
// =============================================================================

func TestGeodataStore_SetAndGet(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		key       string
		data      []byte
		radius    int
		wantFound bool
	}{
		{
			name:      "store and retrieve",
			key:       "tile_123",
			data:      []byte(`{"lat":52.0,"lon":13.0}`),
			radius:    8500,
			wantFound: true,
		},
		{
			name:      "large data (tests compression)",
			key:       "tile_big",
			data:      make([]byte, 10000), // 10KB of zeros
			radius:    10000,
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := setupTestStore(t)
			defer cleanup()

			err := store.SetGeodataCache(ctx, tt.key, tt.data, tt.radius, 52.0, 13.0)
			if err != nil {
				t.Fatalf("SetGeodataCache() error = %v", err)
			}

			gotData, gotRadius, gotFound := store.GetGeodataCache(ctx, tt.key)
			if gotFound != tt.wantFound {
				t.Errorf("GetGeodataCache() found = %v, want %v", gotFound, tt.wantFound)
			}
			if gotRadius != tt.radius {
				t.Errorf("GetGeodataCache() radius = %d, want %d", gotRadius, tt.radius)
			}
			if len(gotData) != len(tt.data) {
				t.Errorf("GetGeodataCache() data len = %d, want %d", len(gotData), len(tt.data))
			}
		})
	}
}

func TestGeodataStore_GetMissing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, _, found := store.GetGeodataCache(ctx, "nonexistent")
	if found {
		t.Error("GetGeodataCache() should return false for missing key")
	}
}

// =============================================================================
// Cache Interface Tests (Get/Set without context, cache.Cacher)
// =============================================================================

func TestCacheInterface_GetSet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.Set("interface_key", []byte("interface_value"))
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, hit := store.Get("interface_key")
	if !hit {
		t.Error("Get() expected hit")
	}
	if string(got) != "interface_value" {
		t.Errorf("Get() = %q, want %q", string(got), "interface_value")
	}

	_, hit = store.Get("missing")
	if hit {
		t.Error("Get() expected miss for nonexistent key")
	}
}
