package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wayfarer/pkg/db"
)

func TestMaintenance_PrunesOldCache(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "maint_test.db")
	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()

	oldDeadline := time.Now().Add(-40 * 24 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "old-key", "old-val", oldDeadline); err != nil {
		t.Fatal(err)
	}
	newDeadline := time.Now().Add(-1 * 24 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "new-key", "new-val", newDeadline); err != nil {
		t.Fatal(err)
	}

	if err := Run(ctx, d); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var count int
	if err := d.QueryRow("SELECT count(*) FROM cache WHERE key = ?", "old-key").Scan(&count); err != nil {
		t.Errorf("Failed to query cache count: %v", err)
	}
	if count != 0 {
		t.Error("Old cache entry was not pruned")
	}
	if err := d.QueryRow("SELECT count(*) FROM cache WHERE key = ?", "new-key").Scan(&count); err != nil {
		t.Errorf("Failed to query cache count: %v", err)
	}
	if count != 1 {
		t.Error("New cache entry was incorrectly pruned")
	}
}
