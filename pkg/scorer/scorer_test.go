package scorer

import (
	"context"
	"testing"

	"wayfarer/pkg/model"
)

type fakeExtractor struct {
	byKey map[string][]model.AnchoredFact
}

func (f *fakeExtractor) ExtractFacts(ctx context.Context, poi model.POI, lang string) ([]model.AnchoredFact, []model.FactSource, error) {
	return f.byKey[poi.Key], nil, nil
}

func richFacts(n, years int) []model.AnchoredFact {
	facts := make([]model.AnchoredFact, n)
	for i := range facts {
		facts[i] = model.AnchoredFact{Fact: model.Fact{Text: "fact"}, HasYear: i < years}
	}
	return facts
}

func TestSelect_DropsFarAndHeard(t *testing.T) {
	pois := []model.POI{
		{Key: "a", DistanceMeters: 2500},
		{Key: "b", DistanceMeters: 1000},
		{Key: "c", DistanceMeters: 500},
	}
	ex := &fakeExtractor{byKey: map[string][]model.AnchoredFact{
		"b": richFacts(12, 3),
		"c": richFacts(12, 3),
	}}
	heard := map[string]struct{}{"c": {}}

	s := New(ex)
	got, err := s.Select(context.Background(), pois, heard, "en")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.POI.Key != "b" {
		t.Fatalf("expected poi b, got %+v", got)
	}
}

func TestSelect_SkipsStoryPotentialGateFailures(t *testing.T) {
	pois := []model.POI{
		{Key: "near", DistanceMeters: 100},
		{Key: "far", DistanceMeters: 1800},
	}
	ex := &fakeExtractor{byKey: map[string][]model.AnchoredFact{
		"near": richFacts(5, 0),  // too few facts
		"far":  richFacts(12, 3), // passes gate
	}}

	s := New(ex)
	got, err := s.Select(context.Background(), pois, nil, "en")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.POI.Key != "far" {
		t.Fatalf("expected poi far (only gate-passer), got %+v", got)
	}
}

func TestSelect_PrefersDensityOverRawDistance(t *testing.T) {
	pois := []model.POI{
		{Key: "close-sparse", DistanceMeters: 200},
		{Key: "farther-dense", DistanceMeters: 1500},
	}
	ex := &fakeExtractor{byKey: map[string][]model.AnchoredFact{
		"close-sparse":  richFacts(10, 2),  // boost = 10*80 + 2*220 = 1240, score = 200-1240 = -1040
		"farther-dense": richFacts(20, 10), // boost = 20*80 + 10*220 = 3800, score = 1500-3800 = -2300
	}}

	s := New(ex)
	got, err := s.Select(context.Background(), pois, nil, "en")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.POI.Key != "farther-dense" {
		t.Fatalf("expected farther-dense to win on density, got %+v", got)
	}
}

func TestSelect_NoCandidatesReturnsNil(t *testing.T) {
	ex := &fakeExtractor{byKey: map[string][]model.AnchoredFact{}}
	s := New(ex)
	got, err := s.Select(context.Background(), nil, nil, "en")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestSelect_LimitsToClosest18(t *testing.T) {
	pois := make([]model.POI, 25)
	byKey := make(map[string][]model.AnchoredFact, 25)
	for i := range pois {
		key := string(rune('a' + i))
		pois[i] = model.POI{Key: key, DistanceMeters: float64(i * 10)}
		byKey[key] = nil // no facts, gate fails regardless
	}
	// Index 18 is the 19th-closest, just outside the top-18 cutoff.
	byKey[string(rune('a'+18))] = richFacts(12, 3)

	ex := &fakeExtractor{byKey: byKey}
	s := New(ex)
	got, err := s.Select(context.Background(), pois, nil, "en")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil since the only gate-passer falls outside top 18, got %+v", got)
	}
}
