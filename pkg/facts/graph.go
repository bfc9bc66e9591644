// Package facts implements the C6 fact extractors: a structured
// knowledge-graph query (C6a), encyclopedia prose mining (C6b), a
// sensitive-content filter (C6c), and the merger that combines both
// into one capped, deduplicated fact set.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wayfarer/pkg/cache"
	"wayfarer/pkg/model"
	"wayfarer/pkg/wikidata"
)

// GraphExtractor synthesizes atomic facts from one structured Wikidata
// query per graphId, grounded on the teacher's pkg/wikidata.Client
// SPARQL core (client.go).
type GraphExtractor struct {
	client *wikidata.Client
	cache  *cache.TTLCache[[]model.Fact]
	ttl    time.Duration
}

// NewGraphExtractor creates a graph-backed fact extractor.
func NewGraphExtractor(c *wikidata.Client, ttl time.Duration) *GraphExtractor {
	return &GraphExtractor{client: c, cache: cache.New[[]model.Fact](), ttl: ttl}
}

// Extract returns the graph facts for graphId, cached per (graphId, lang).
func (g *GraphExtractor) Extract(ctx context.Context, graphID, lang string) ([]model.Fact, error) {
	if graphID == "" {
		return nil, nil
	}

	key := fmt.Sprintf("%s|%s", graphID, lang)
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}

	query := graphFactsQuery(graphID, lang)
	cacheKey := fmt.Sprintf("facts_graph_%s", key)

	body, err := g.client.RawSPARQL(ctx, query, cacheKey)
	if err != nil {
		return nil, err
	}

	facts, err := parseGraphFacts(body)
	if err != nil {
		return nil, err
	}

	g.cache.Set(key, facts, g.ttl)
	return facts, nil
}

func graphFactsQuery(graphID, lang string) string {
	return fmt.Sprintf(`SELECT ?descr
       (GROUP_CONCAT(DISTINCT ?instanceLabel; separator="|") AS ?instances)
       (MIN(?inceptionYear) AS ?inception)
       (GROUP_CONCAT(DISTINCT ?namedAfterLabel; separator="|") AS ?namedAfter)
       (GROUP_CONCAT(DISTINCT ?heritageLabel; separator="|") AS ?heritage)
       (GROUP_CONCAT(DISTINCT ?eventLabel; separator="|") AS ?events)
WHERE {
  OPTIONAL { wd:%[1]s schema:description ?descr . FILTER(LANG(?descr) = "%[2]s") }
  OPTIONAL { wd:%[1]s wdt:P31 ?instance . ?instance rdfs:label ?instanceLabel . FILTER(LANG(?instanceLabel) = "%[2]s") }
  OPTIONAL { wd:%[1]s wdt:P571 ?inceptionDate . BIND(YEAR(?inceptionDate) AS ?inceptionYear) }
  OPTIONAL { wd:%[1]s wdt:P138 ?namedAfterItem . ?namedAfterItem rdfs:label ?namedAfterLabel . FILTER(LANG(?namedAfterLabel) = "%[2]s") }
  OPTIONAL { wd:%[1]s wdt:P1435 ?heritageItem . ?heritageItem rdfs:label ?heritageLabel . FILTER(LANG(?heritageLabel) = "%[2]s") }
  OPTIONAL { wd:%[1]s wdt:P793 ?eventItem . ?eventItem rdfs:label ?eventLabel . FILTER(LANG(?eventLabel) = "%[2]s") }
}
GROUP BY ?descr`, graphID, lang)
}

type graphSparqlValue struct {
	Value string `json:"value"`
}

type graphSparqlResponse struct {
	Results struct {
		Bindings []map[string]graphSparqlValue `json:"bindings"`
	} `json:"results"`
}

// parseGraphFacts synthesizes terse lines in the stable order Description,
// Type, Inception year, Named after, Heritage designation, Notable event(s).
func parseGraphFacts(body []byte) ([]model.Fact, error) {
	var resp graphSparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", wikidata.ErrParse, err)
	}
	if len(resp.Results.Bindings) == 0 {
		return nil, nil
	}
	b := resp.Results.Bindings[0]

	var facts []model.Fact
	if v := b["descr"].Value; v != "" {
		facts = append(facts, model.Fact{Text: capitalize(v) + "."})
	}
	if v := splitConcat(b["instances"].Value); len(v) > 0 {
		facts = append(facts, model.Fact{Text: fmt.Sprintf("It is a %s.", strings.Join(v, ", "))})
	}
	if v := b["inception"].Value; v != "" {
		facts = append(facts, model.Fact{Text: fmt.Sprintf("It dates to %s.", v)})
	}
	if v := splitConcat(b["namedAfter"].Value); len(v) > 0 {
		facts = append(facts, model.Fact{Text: fmt.Sprintf("It is named after %s.", strings.Join(v, ", "))})
	}
	if v := splitConcat(b["heritage"].Value); len(v) > 0 {
		facts = append(facts, model.Fact{Text: fmt.Sprintf("It holds the heritage designation %s.", strings.Join(v, ", "))})
	}
	if v := splitConcat(b["events"].Value); len(v) > 0 {
		facts = append(facts, model.Fact{Text: fmt.Sprintf("It is associated with %s.", strings.Join(v, ", "))})
	}

	return facts, nil
}

func splitConcat(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
