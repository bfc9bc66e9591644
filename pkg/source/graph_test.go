package source

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"wayfarer/pkg/wikidata"
)

func TestGraph_Fetch(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{
			"results": {
				"bindings": [
					{
						"item": {"type": "uri", "value": "http://www.wikidata.org/entity/Q123"},
						"lat": {"type": "literal", "value": "31.77"},
						"lon": {"type": "literal", "value": "35.21"},
						"itemLabel": {"type": "literal", "value": "Old City"},
						"sitelinks": {"type": "literal", "value": "12"},
						"instances": {"type": "literal", "value": "http://www.wikidata.org/entity/Q515"}
					}
				]
			}
		}`))
	}))
	defer svr.Close()

	client := wikidata.NewClient(newTestRequestClient(), slog.Default())
	client.SPARQLEndpoint = svr.URL

	g := NewGraph(client)
	pois := g.Fetch(context.Background(), 31.77, 35.21, 900, "en")

	if len(pois) != 1 {
		t.Fatalf("expected 1 POI, got %d", len(pois))
	}
	if pois[0].Label != "Old City" {
		t.Errorf("expected label 'Old City', got %q", pois[0].Label)
	}
	if pois[0].GraphID != "Q123" {
		t.Errorf("expected GraphID Q123, got %q", pois[0].GraphID)
	}
	if pois[0].Source != "graph" {
		t.Errorf("expected source graph, got %q", pois[0].Source)
	}
}

func TestGraph_LocalTitleFallback(t *testing.T) {
	a := wikidata.Article{
		QID:         "Q1",
		TitleEn:     "Fallback English",
		LocalTitles: map[string]string{"he": "עברית"},
	}
	g := &Graph{}
	poi := g.toPOI(a, "fr")
	if poi.Label != "עברית" {
		t.Errorf("expected he local title fallback, got %q", poi.Label)
	}

	a2 := wikidata.Article{QID: "Q2", TitleEn: "English Only"}
	poi2 := g.toPOI(a2, "fr")
	if poi2.Label != "English Only" {
		t.Errorf("expected TitleEn fallback, got %q", poi2.Label)
	}
}
