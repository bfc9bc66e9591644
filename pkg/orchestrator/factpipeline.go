package orchestrator

import (
	"context"

	"wayfarer/pkg/facts"
	"wayfarer/pkg/model"
)

// GraphExtractor mines atomic facts from the knowledge graph (C6a).
type GraphExtractor interface {
	Extract(ctx context.Context, graphID, lang string) ([]model.Fact, error)
}

// EncyclopediaExtractor resolves and mines atomic facts from an
// encyclopedia article (C6b).
type EncyclopediaExtractor interface {
	Resolve(ctx context.Context, poi model.POI, targetLang string) (*model.EncyclopediaRef, error)
	Extract(ctx context.Context, ref model.EncyclopediaRef) ([]model.Fact, error)
}

// FactPipeline implements scorer.FactExtractor by running C6a ⊕ C6b,
// filtering sensitive content (C6c), and merging (spec.md §4.6).
type FactPipeline struct {
	graph           GraphExtractor
	encyclopedia    EncyclopediaExtractor
	sensitiveByLang map[string][]string
}

// NewFactPipeline creates the combined graph+encyclopedia fact extractor
// used by the scorer.
func NewFactPipeline(graph GraphExtractor, encyclopedia EncyclopediaExtractor, sensitiveByLang map[string][]string) *FactPipeline {
	return &FactPipeline{graph: graph, encyclopedia: encyclopedia, sensitiveByLang: sensitiveByLang}
}

// ExtractFacts runs both extractors for poi, independently — a failure in
// either source degrades to an empty fact set from that source rather
// than aborting the candidate (graceful degradation across sources).
func (p *FactPipeline) ExtractFacts(ctx context.Context, poi model.POI, lang string) ([]model.AnchoredFact, []model.FactSource, error) {
	var graphFacts, encFacts []model.Fact
	var sources []model.FactSource

	if poi.GraphID != "" && p.graph != nil {
		if f, err := p.graph.Extract(ctx, poi.GraphID, lang); err == nil && len(f) > 0 {
			graphFacts = f
			sources = append(sources, model.FactSource{Type: model.SourceGraph, Title: poi.GraphID})
		}
	}

	if p.encyclopedia != nil {
		ref, err := p.encyclopedia.Resolve(ctx, poi, lang)
		if err == nil && ref != nil {
			if f, err := p.encyclopedia.Extract(ctx, *ref); err == nil && len(f) > 0 {
				encFacts = f
				sources = append(sources, model.FactSource{Type: model.SourceEncyclopedia, Title: ref.Title})
			}
		}
	}

	graphFacts = facts.FilterSensitive(graphFacts, lang, p.sensitiveByLang)
	encFacts = facts.FilterSensitive(encFacts, lang, p.sensitiveByLang)

	merged := facts.Merge(graphFacts, encFacts)
	return merged, sources, nil
}
