// Package source implements the C4 proximity candidate adapters: OSM
// (Overpass), knowledge-graph (Wikidata), and a commercial places
// fallback, fanned out concurrently and merged in a stable order.
package source

import (
	"context"

	"wayfarer/pkg/model"
)

// Adapter fetches POI candidates around a point. It never returns an
// error: a failed fetch degrades to an empty slice, logged by the
// adapter itself, so one provider's outage never blocks the others.
type Adapter interface {
	Fetch(ctx context.Context, lat, lng float64, radiusM int, lang string) []model.POI
}
