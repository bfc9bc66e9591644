package api

import (
	"encoding/json"
	"net/http"
	"runtime"

	"wayfarer/pkg/tracker"
)

// StatsHandler serves GET /api/stats: per-provider hit/miss counters
// (C16) plus Go runtime memory stats, mirroring the teacher's
// diagnostics endpoint with the process/GUI monitoring stripped out
// (there is no companion GUI process in this service).
type StatsHandler struct {
	tracker *tracker.Tracker
}

// NewStatsHandler creates a StatsHandler backed by t.
func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t}
}

// ProviderStatsDTO is the wire shape of one provider's counters.
type ProviderStatsDTO struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APISuccess  int64 `json:"api_success"`
	APIFailures int64 `json:"api_errors"`
	HitRate     int64 `json:"hit_rate"`
}

// GoMemStats is a breakdown of Go runtime memory usage.
type GoMemStats struct {
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	HeapInuseMB  float64 `json:"heap_inuse_mb"`
	HeapSysMB    float64 `json:"heap_sys_mb"`
	TotalSysMB   float64 `json:"total_sys_mb"`
	NumGC        uint32  `json:"num_gc"`
	NumGoroutine int     `json:"num_goroutine"`
	HeapObjects  uint64  `json:"heap_objects"`
}

// StatsResponse is the full GET /api/stats payload.
type StatsResponse struct {
	GoMem     GoMemStats                  `json:"go_mem"`
	Providers map[string]ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := StatsResponse{
		GoMem: GoMemStats{
			HeapAllocMB:  bytesToMB(ms.HeapAlloc),
			HeapInuseMB:  bytesToMB(ms.HeapInuse),
			HeapSysMB:    bytesToMB(ms.HeapSys),
			TotalSysMB:   bytesToMB(ms.Sys),
			NumGC:        ms.NumGC,
			NumGoroutine: runtime.NumGoroutine(),
			HeapObjects:  ms.HeapObjects,
		},
		Providers: make(map[string]ProviderStatsDTO, len(snapshot)),
	}

	for provider, stats := range snapshot {
		total := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if total > 0 {
			hitRate = (stats.CacheHits * 100) / total
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:   stats.CacheHits,
			CacheMisses: stats.CacheMisses,
			APISuccess:  stats.APISuccess,
			APIFailures: stats.APIFailures,
			HitRate:     hitRate,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func bytesToMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
