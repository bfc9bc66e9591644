package source

import (
	"context"

	"golang.org/x/sync/errgroup"

	"wayfarer/pkg/model"
)

// Fanout runs OSM, graph, and places adapters concurrently with
// settle-all semantics: each goroutine recovers its own result into a
// dedicated slot so one adapter's failure (already absorbed into an
// empty slice by Adapter.Fetch) never affects the others. Places only
// runs when OSM and graph both yield zero candidates, or when
// interesting-mode is disabled (spec.md §4.4).
type Fanout struct {
	OSM    Adapter
	Graph  Adapter
	Places Adapter
}

// NewFanout wires the three concrete adapters into one fan-out source.
func NewFanout(osm, graph, places Adapter) *Fanout {
	return &Fanout{OSM: osm, Graph: graph, Places: places}
}

// Fetch merges results in the deterministic order OSM -> graph -> places
// required by spec.md §5's ordering guarantee.
func (f *Fanout) Fetch(ctx context.Context, lat, lng float64, radiusM int, lang string, interesting bool) []model.POI {
	var osmResult, graphResult []model.POI

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		osmResult = f.OSM.Fetch(gctx, lat, lng, radiusM, lang)
		return nil
	})
	g.Go(func() error {
		graphResult = f.Graph.Fetch(gctx, lat, lng, radiusM, lang)
		return nil
	})
	_ = g.Wait() // adapters never return errors; Fetch signatures already swallow them

	merged := make([]model.POI, 0, len(osmResult)+len(graphResult))
	merged = append(merged, osmResult...)
	merged = append(merged, graphResult...)

	needsPlaces := !interesting || (len(osmResult) == 0 && len(graphResult) == 0)
	if needsPlaces && f.Places != nil {
		placesResult := f.Places.Fetch(ctx, lat, lng, radiusM, lang)
		merged = append(merged, placesResult...)
	}

	return merged
}
