// Package scorer implements the C7 candidate selector: a distance- and
// fact-density-weighted pick among nearby POIs, gated on story potential.
package scorer

import (
	"context"
	"sort"

	"wayfarer/pkg/model"
)

const (
	// maxDistanceM drops any POI farther than this from the caller.
	maxDistanceM = 2200.0
	// candidateLimit caps how many of the closest POIs are fact-checked.
	candidateLimit = 18
	// minFactsForStory is the story-potential gate's fact-count floor.
	minFactsForStory = 10
	// minYearFactsForStory is the story-potential gate's anchored-year floor.
	minYearFactsForStory = 2

	factBoostWeight   = 80.0
	factBoostCap      = 20
	anchorBoostWeight = 220.0
	anchorBoostCap    = 10
)

// FactExtractor merges and anchors the fact set for one POI (C6).
type FactExtractor interface {
	ExtractFacts(ctx context.Context, poi model.POI, lang string) (facts []model.AnchoredFact, sources []model.FactSource, err error)
}

// Scorer selects the single best narratable POI from a candidate set.
type Scorer struct {
	extractor FactExtractor
}

// New creates a Scorer backed by the given fact extractor.
func New(extractor FactExtractor) *Scorer {
	return &Scorer{extractor: extractor}
}

// Select implements spec.md §4.7: drop far/heard POIs, fact-check the
// closest 18, skip any that fail the story-potential gate, and return the
// lowest-scoring (closest + fact-densest) survivor. Ties favor the
// candidate that appeared earlier in pois.
func (s *Scorer) Select(ctx context.Context, pois []model.POI, heard map[string]struct{}, lang string) (*model.PoiWithFacts, error) {
	candidates := make([]model.POI, 0, len(pois))
	inputPos := make(map[string]int, len(pois))
	for i, p := range pois {
		if p.DistanceMeters > maxDistanceM {
			continue
		}
		if _, ok := heard[p.Key]; ok {
			continue
		}
		candidates = append(candidates, p)
		if _, ok := inputPos[p.Key]; !ok {
			inputPos[p.Key] = i
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceMeters < candidates[j].DistanceMeters
	})
	if len(candidates) > candidateLimit {
		candidates = candidates[:candidateLimit]
	}

	var best *model.PoiWithFacts
	bestScore := 0.0
	bestPos := 0

	for _, p := range candidates {
		facts, sources, err := s.extractor.ExtractFacts(ctx, p, lang)
		if err != nil {
			continue
		}
		if !storyPotential(facts) {
			continue
		}

		score := p.DistanceMeters - boost(facts)
		pos := inputPos[p.Key]
		if best == nil || score < bestScore || (score == bestScore && pos < bestPos) {
			pwf := model.PoiWithFacts{POI: p, Facts: facts, Sources: sources}
			best = &pwf
			bestScore = score
			bestPos = pos
		}
	}

	return best, nil
}

// storyPotential is the gate of spec.md §4.7(3): at least 10 facts, at
// least 2 of which carry a concrete year.
func storyPotential(facts []model.AnchoredFact) bool {
	if len(facts) < minFactsForStory {
		return false
	}
	yearFacts := 0
	for _, f := range facts {
		if f.HasYear {
			yearFacts++
		}
	}
	return yearFacts >= minYearFactsForStory
}

// boost computes the score discount of spec.md §4.7(4): fact density plus
// anchor density, each capped so a single overwhelming POI can't dominate.
func boost(facts []model.AnchoredFact) float64 {
	factCount := len(facts)
	if factCount > factBoostCap {
		factCount = factBoostCap
	}

	anchorCount := 0
	for _, f := range facts {
		if f.Anchored() {
			anchorCount++
		}
	}
	if anchorCount > anchorBoostCap {
		anchorCount = anchorBoostCap
	}

	return float64(factCount)*factBoostWeight + float64(anchorCount)*anchorBoostWeight
}
