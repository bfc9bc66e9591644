// Package exposure implements the C11 append-only exposure log: every
// orchestrator decision, spoken or silent, is durably recorded and
// mirrored into a bounded in-memory ring buffer for a debug endpoint.
package exposure

import (
	"context"
	"log/slog"
	"sync"

	"wayfarer/pkg/model"
	"wayfarer/pkg/store"
)

const ringBufferSize = 200

// Log appends exposure records to the durable store and keeps the most
// recent ones in memory for debug inspection.
type Log struct {
	durable store.ExposureStore
	logger  *slog.Logger

	mu   sync.Mutex
	ring []model.ExposureRecord
	next int
}

// New creates an exposure log backed by durable.
func New(durable store.ExposureStore, logger *slog.Logger) *Log {
	return &Log{durable: durable, logger: logger}
}

// Append records rec. Durable-write failures are logged, never fatal
// (spec.md §4.11): the ring buffer is still updated so the debug endpoint
// stays accurate even if the database is unavailable.
func (l *Log) Append(ctx context.Context, rec model.ExposureRecord) {
	if l.durable != nil {
		if err := l.durable.AppendExposure(ctx, rec); err != nil {
			l.logger.Warn("exposure: durable write failed", "error", err, "userKey", rec.UserKey, "poiKey", rec.PoiKey)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ring) < ringBufferSize {
		l.ring = append(l.ring, rec)
		return
	}
	l.ring[l.next] = rec
	l.next = (l.next + 1) % ringBufferSize
}

// Latest returns up to n most recent records, newest first.
func (l *Log) Latest(n int) []model.ExposureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := len(l.ring)
	if n > total {
		n = total
	}
	out := make([]model.ExposureRecord, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + total) % total
		out[i] = l.ring[idx]
	}
	return out
}
