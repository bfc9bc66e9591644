package store

import (
	"context"
	"testing"
	"time"

	"wayfarer/pkg/model"
)

func TestSQLiteStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	testPoiCache(t, ctx, store)
	testHistory(t, ctx, store)
	testExposure(t, ctx, store)
	testTasteProfile(t, ctx, store)
	testArticles(t, ctx, store)
	testState(t, ctx, store)
}

func testPoiCache(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("PoiCache", func(t *testing.T) {
		pois := []model.POI{
			{Key: "osm:1", Source: model.SourceOSM, Label: "Old Bridge", Lat: 10.0, Lng: 20.0},
			{Key: "graph:Q1", Source: model.SourceGraph, Label: "City Hall", Lat: 10.1, Lng: 20.1},
		}

		if err := store.SavePOIs(ctx, "bucket:1", pois); err != nil {
			t.Fatalf("SavePOIs failed: %v", err)
		}

		loaded, found, err := store.GetPOIs(ctx, "bucket:1")
		if err != nil {
			t.Fatalf("GetPOIs failed: %v", err)
		}
		if !found {
			t.Fatal("expected cache hit")
		}
		if len(loaded) != 2 || loaded[0].Key != "osm:1" {
			t.Errorf("unexpected POIs: %+v", loaded)
		}

		if err := store.SavePOIs(ctx, "bucket:1", pois[:1]); err != nil {
			t.Fatalf("SavePOIs overwrite failed: %v", err)
		}
		loaded, _, _ = store.GetPOIs(ctx, "bucket:1")
		if len(loaded) != 1 {
			t.Errorf("expected overwrite to replace contents, got %d entries", len(loaded))
		}

		_, found, err = store.GetPOIs(ctx, "bucket:missing")
		if err != nil {
			t.Fatalf("GetPOIs for missing key failed: %v", err)
		}
		if found {
			t.Error("expected cache miss for unknown key")
		}
	})
}

func testHistory(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("History", func(t *testing.T) {
		seen, err := store.HasSeen(ctx, "user1", "osm:1")
		if err != nil {
			t.Fatalf("HasSeen failed: %v", err)
		}
		if seen {
			t.Error("expected not seen before MarkSeen")
		}

		if err := store.MarkSeen(ctx, "user1", "osm:1"); err != nil {
			t.Fatalf("MarkSeen failed: %v", err)
		}
		if err := store.MarkSeen(ctx, "user1", "osm:1"); err != nil {
			t.Fatalf("MarkSeen should be idempotent: %v", err)
		}

		seen, err = store.HasSeen(ctx, "user1", "osm:1")
		if err != nil {
			t.Fatalf("HasSeen failed: %v", err)
		}
		if !seen {
			t.Error("expected seen after MarkSeen")
		}

		if err := store.MarkSeen(ctx, "user1", "osm:2"); err != nil {
			t.Fatalf("MarkSeen failed: %v", err)
		}

		all, err := store.ListSeen(ctx, "user1")
		if err != nil {
			t.Fatalf("ListSeen failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 seen entries, got %d", len(all))
		}

		other, err := store.ListSeen(ctx, "user2")
		if err != nil {
			t.Fatalf("ListSeen for other user failed: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("expected no history for unrelated user, got %d", len(other))
		}
	})
}

func testExposure(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Exposure", func(t *testing.T) {
		rec := model.ExposureRecord{
			Timestamp:   time.Now(),
			UserKey:     "user1",
			Lat:         10.0,
			Lng:         20.0,
			PoiKey:      "osm:1",
			PoiName:     "Old Bridge",
			PoiSource:   "osm",
			Distance:    123.4,
			Reason:      "spoken",
			ShouldSpeak: true,
			StoryLen:    480,
		}
		if err := store.AppendExposure(ctx, rec); err != nil {
			t.Fatalf("AppendExposure failed: %v", err)
		}

		zeroTime := model.ExposureRecord{UserKey: "user2", PoiKey: "osm:2"}
		if err := store.AppendExposure(ctx, zeroTime); err != nil {
			t.Fatalf("AppendExposure with zero timestamp failed: %v", err)
		}
	})
}

func testTasteProfile(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("TasteProfile", func(t *testing.T) {
		_, found, err := store.GetTasteProfile(ctx, "user1")
		if err != nil {
			t.Fatalf("GetTasteProfile failed: %v", err)
		}
		if found {
			t.Error("expected no profile before save")
		}

		p := model.TasteProfile{ID: "user1", Humor: 0.8, Nerdy: 0.3, Dramatic: 0.6, Shortness: 0.2}
		if err := store.SaveTasteProfile(ctx, p); err != nil {
			t.Fatalf("SaveTasteProfile failed: %v", err)
		}

		loaded, found, err := store.GetTasteProfile(ctx, "user1")
		if err != nil {
			t.Fatalf("GetTasteProfile failed: %v", err)
		}
		if !found {
			t.Fatal("expected profile to be found")
		}
		if loaded.Humor != 0.8 || loaded.ID != "user1" {
			t.Errorf("unexpected profile: %+v", loaded)
		}

		p.Humor = 0.9
		if err := store.SaveTasteProfile(ctx, p); err != nil {
			t.Fatalf("SaveTasteProfile update failed: %v", err)
		}
		loaded, _, _ = store.GetTasteProfile(ctx, "user1")
		if loaded.Humor != 0.9 {
			t.Errorf("expected updated humor 0.9, got %f", loaded.Humor)
		}
	})
}

func testArticles(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Articles", func(t *testing.T) {
		a := &model.Article{
			UUID:         "uuid-1",
			Title:        "Eiffel Tower",
			URL:          "https://en.wikipedia.org/wiki/Eiffel_Tower",
			Names:        map[string]string{"en": "Eiffel Tower", "fr": "Tour Eiffel"},
			Text:         "The Eiffel Tower is a wrought-iron lattice tower.",
			Lengths:      map[string]int{"en": 50, "fr": 48},
			ThumbnailURL: "https://example.com/thumb.jpg",
		}
		if err := store.SaveArticle(ctx, a); err != nil {
			t.Fatalf("SaveArticle failed: %v", err)
		}

		loaded, err := store.GetArticle(ctx, "uuid-1")
		if err != nil {
			t.Fatalf("GetArticle failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("GetArticle returned nil")
		}
		if loaded.Title != "Eiffel Tower" || loaded.Names["fr"] != "Tour Eiffel" {
			t.Errorf("unexpected article: %+v", loaded)
		}

		missing, err := store.GetArticle(ctx, "does-not-exist")
		if err != nil {
			t.Fatalf("GetArticle for missing uuid failed: %v", err)
		}
		if missing != nil {
			t.Error("expected nil for missing article")
		}
	})
}

func testState(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("State", func(t *testing.T) {
		_, ok := store.GetState(ctx, "flag")
		if ok {
			t.Error("expected no state before Set")
		}

		if err := store.SetState(ctx, "flag", "on"); err != nil {
			t.Fatalf("SetState failed: %v", err)
		}

		val, ok := store.GetState(ctx, "flag")
		if !ok || val != "on" {
			t.Errorf("expected 'on', got %q (ok=%v)", val, ok)
		}

		if err := store.DeleteState(ctx, "flag"); err != nil {
			t.Fatalf("DeleteState failed: %v", err)
		}
		_, ok = store.GetState(ctx, "flag")
		if ok {
			t.Error("expected no state after delete")
		}
	})
}
