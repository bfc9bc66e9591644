// Package maintenance runs periodic housekeeping against the durable
// store at startup: pruning stale cache rows so the database doesn't
// grow unbounded across long-running deployments.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"wayfarer/pkg/db"
)

// maxCacheAge bounds how long a row of the cache table may exist, counted
// from its created_at, before it is pruned. Geodata tiles in cache_geodata
// are not pruned.
const maxCacheAge = 30 * 24 * time.Hour

// Run executes startup maintenance tasks. It blocks until completion.
func Run(ctx context.Context, d *db.DB) error {
	if err := pruneCache(d); err != nil {
		slog.Error("cache pruning failed", "error", err)
		return err
	}
	slog.Info("cache pruning completed")
	return nil
}

func pruneCache(d *db.DB) error {
	return d.PruneCache(maxCacheAge)
}
