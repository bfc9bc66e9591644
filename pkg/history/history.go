// Package history implements the at-most-once-per-user exposure guarantee
// (C3): an in-memory heard-set backed durably by pkg/store's
// user_poi_history table.
package history

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"wayfarer/pkg/store"
)

// Store tracks which POIs a user has already been narrated. Durable
// writes are best-effort: a failure is logged, never surfaced to the
// caller, so a missing database never blocks the request path.
type Store struct {
	mu     sync.RWMutex
	seen   map[string]map[string]struct{} // userKey -> set of poiKey
	durable store.HistoryStore            // nil when no durable store configured
}

// New creates a history.Store. durable may be nil, in which case history
// degrades to in-memory-only for the lifetime of the process.
func New(durable store.HistoryStore) *Store {
	return &Store{
		seen:    make(map[string]map[string]struct{}),
		durable: durable,
	}
}

// HeardSet returns the set of POI keys already narrated to userKey,
// merging the in-memory view with the durable store (durable wins on
// first load per user, then the in-memory set is authoritative).
func (s *Store) HeardSet(ctx context.Context, userKey string) (map[string]struct{}, error) {
	s.mu.RLock()
	set, ok := s.seen[userKey]
	s.mu.RUnlock()
	if ok {
		return cloneSet(set), nil
	}

	set = make(map[string]struct{})
	if s.durable != nil {
		durableSet, err := s.durable.ListSeen(ctx, userKey)
		if err != nil {
			slog.Warn("history: failed to load durable history, continuing with empty set", "userKey", userKey, "error", err)
		} else {
			set = durableSet
		}
	}

	s.mu.Lock()
	s.seen[userKey] = set
	s.mu.Unlock()

	return cloneSet(set), nil
}

// MarkHeard records that userKey has now heard poiKey. Idempotent.
func (s *Store) MarkHeard(ctx context.Context, userKey, poiKey string) error {
	s.mu.Lock()
	set, ok := s.seen[userKey]
	if !ok {
		set = make(map[string]struct{})
		s.seen[userKey] = set
	}
	set[poiKey] = struct{}{}
	s.mu.Unlock()

	if s.durable != nil {
		if err := s.durable.MarkSeen(ctx, userKey, poiKey); err != nil {
			slog.Warn("history: failed to persist mark-heard", "userKey", userKey, "poiKey", poiKey, "error", err)
		}
	}
	return nil
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

// UserKey resolves the caller identity for history/exposure scoping:
// X-User-Id header, then X-Forwarded-For, then the literal "anon".
func UserKey(r *http.Request) string {
	if id := r.Header.Get("X-User-Id"); id != "" {
		return id
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	return "anon"
}
