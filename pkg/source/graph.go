package source

import (
	"context"
	"fmt"
	"log/slog"

	h3 "github.com/uber/h3-go/v4"

	"wayfarer/pkg/model"
	"wayfarer/pkg/wikidata"
)

const (
	graphLimit = 40
	graphH3Res = 9
)

// Graph fetches candidates from the knowledge graph via a proximity
// SPARQL query. The cache key is an H3 resolution-9 cell index, grounded
// on the teacher's pkg/wikidata/grid.go tiling, so repeated nearby
// queries land on the same cache bucket instead of a raw lat/lng string.
type Graph struct {
	client *wikidata.Client
}

// NewGraph creates a knowledge-graph-backed adapter.
func NewGraph(c *wikidata.Client) *Graph {
	return &Graph{client: c}
}

func (g *Graph) Fetch(ctx context.Context, lat, lng float64, radiusM int, lang string) []model.POI {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), graphH3Res)
	cacheKey := fmt.Sprintf("wd_h3_%d_%s", radiusM, cell.String())
	if err != nil {
		cacheKey = fmt.Sprintf("wd_raw_%d_%.5f_%.5f", radiusM, lat, lng)
	}

	radiusKm := float64(radiusM) / 1000.0
	query := g.buildQuery(lat, lng, radiusKm, lang)

	articles, _, err := g.client.QuerySPARQL(ctx, query, cacheKey, radiusM, lat, lng)
	if err != nil {
		slog.Warn("graph: sparql query failed", "error", err)
		return nil
	}

	pois := make([]model.POI, 0, len(articles))
	for _, a := range articles {
		poi := g.toPOI(a, lang)
		if !poi.Valid() {
			continue
		}
		pois = append(pois, poi)
	}
	if len(pois) > graphLimit {
		pois = pois[:graphLimit]
	}
	return pois
}

// buildQuery follows spec.md §4.4's proximity graph adapter: a
// geof:distance filter bounding the search radius, with a label
// localization chain requested-lang, he, en, fr.
func (g *Graph) buildQuery(lat, lng, radiusKm float64, lang string) string {
	return fmt.Sprintf(`SELECT DISTINCT ?item ?lat ?lon ?sitelinks
            (GROUP_CONCAT(DISTINCT ?instance_of_uri; separator=",") AS ?instances)
        WHERE {
            SERVICE wikibase:around {
                ?item wdt:P625 ?location .
                bd:serviceParam wikibase:center "Point(%f %f)"^^geo:wktLiteral .
                bd:serviceParam wikibase:radius "%f" .
            }
            ?item p:P625/psv:P625 [ wikibase:geoLatitude ?lat ; wikibase:geoLongitude ?lon ] .
            OPTIONAL { ?item wdt:P31 ?instance_of_uri . }
            OPTIONAL { ?item wikibase:sitelinks ?sitelinks . }
            SERVICE wikibase:label { bd:serviceParam wikibase:language "%s,he,en,fr". }
        }
        GROUP BY ?item ?lat ?lon ?sitelinks
        LIMIT %d`, lng, lat, radiusKm, lang, graphLimit)
}

func (g *Graph) toPOI(a wikidata.Article, lang string) model.POI {
	label := a.Label
	if label == "" {
		label = firstNonEmpty(localTitle(a, lang), a.TitleUser, localTitle(a, "he"), a.TitleEn)
	}

	return model.POI{
		Key:       fmt.Sprintf("graph:%s", a.QID),
		Source:    model.SourceGraph,
		Label:     label,
		Lat:       a.Lat,
		Lng:       a.Lon,
		KindHints: a.Instances,
		GraphID:   a.QID,
	}
}

func localTitle(a wikidata.Article, lang string) string {
	if a.LocalTitles == nil {
		return ""
	}
	return a.LocalTitles[lang]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
