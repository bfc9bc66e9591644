package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"wayfarer/pkg/exposure"
	"wayfarer/pkg/history"
	"wayfarer/pkg/model"
	"wayfarer/pkg/normalize"
	"wayfarer/pkg/prompt"
	"wayfarer/pkg/request"
	"wayfarer/pkg/scorer"
	"wayfarer/pkg/source"
	"wayfarer/pkg/tts"
)

type fakeAdapter struct {
	pois  []model.POI
	calls int
}

func (a *fakeAdapter) Fetch(ctx context.Context, lat, lng float64, radiusM int, lang string) []model.POI {
	a.calls++
	return a.pois
}

type fakeFactExtractor struct {
	facts map[string][]model.AnchoredFact
}

func (f *fakeFactExtractor) ExtractFacts(ctx context.Context, poi model.POI, lang string) ([]model.AnchoredFact, []model.FactSource, error) {
	return f.facts[poi.Key], nil, nil
}

type fakeExposureStore struct {
	records []model.ExposureRecord
}

func (f *fakeExposureStore) AppendExposure(ctx context.Context, rec model.ExposureRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakeGenerator struct {
	response string
}

func (g *fakeGenerator) GenerateText(ctx context.Context, profile, p string) (string, error) {
	return g.response, nil
}

type failingGenerator struct {
	err error
}

func (g *failingGenerator) GenerateText(ctx context.Context, profile, p string) (string, error) {
	return "", g.err
}

type fakeTTS struct {
	err error
}

func (t *fakeTTS) Synthesize(ctx context.Context, text, lang string) ([]byte, string, error) {
	if t.err != nil {
		return nil, "", t.err
	}
	return []byte("audio"), "audio/mpeg", nil
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	return strings.Join(w, " ") + "."
}

func denseFacts(n, years int) []model.AnchoredFact {
	facts := make([]model.AnchoredFact, n)
	for i := range facts {
		facts[i] = model.AnchoredFact{Fact: model.Fact{Text: "fact"}, HasYear: i < years}
	}
	return facts
}

func newTestOrchestrator(pois []model.POI, factsByKey map[string][]model.AnchoredFact, genResponse string, ttsErr error) (*Orchestrator, *fakeExposureStore, *fakeAdapter) {
	osm := &fakeAdapter{pois: pois}
	graph := &fakeAdapter{}
	fanout := source.NewFanout(osm, graph, nil)

	extractor := &fakeFactExtractor{facts: factsByKey}
	sc := scorer.New(extractor)

	expStore := &fakeExposureStore{}
	expLog := exposure.New(expStore, slog.Default())

	o := New(Config{
		Fanout:            fanout,
		Normalizer:        normalize.New(time.Minute),
		Scorer:            sc,
		History:           history.New(nil),
		Generator:         &fakeGenerator{response: genResponse},
		TTS:               &fakeTTS{err: ttsErr},
		Exposure:          expLog,
		Bounds:            prompt.Bounds{MinWords: 3, MaxWords: 500},
		BannedByLang:      nil,
		RadiusStepsMeters: []int{500, 900, 1500, 2400},
		Logger:            slog.Default(),
	})
	return o, expStore, osm
}

func TestDecide_NoStrongPOI(t *testing.T) {
	o, _, _ := newTestOrchestrator(nil, nil, "", nil)
	decision, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.ShouldSpeak || decision.Reason != "no_strong_poi" {
		t.Fatalf("got %+v, want no_strong_poi", decision)
	}
}

func TestDecide_SpeaksAndMarksHistory(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, expStore, _ := newTestOrchestrator([]model.POI{poi}, facts, words(50), nil)
	decision, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !decision.ShouldSpeak {
		t.Fatalf("expected ShouldSpeak, got %+v", decision)
	}
	if decision.POI == nil || decision.POI.Key != "osm:1" {
		t.Fatalf("expected poi osm:1, got %+v", decision.POI)
	}
	if len(decision.AudioBytes) == 0 {
		t.Error("expected audio bytes")
	}

	heard, _ := o.history.HeardSet(context.Background(), "user1")
	if _, ok := heard["osm:1"]; !ok {
		t.Error("expected poi marked heard")
	}

	if len(expStore.records) != 1 || !expStore.records[0].ShouldSpeak {
		t.Fatalf("expected 1 should-speak exposure record, got %+v", expStore.records)
	}
}

func TestDecide_ModelNoStory_DoesNotMarkHistory(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, expStore, _ := newTestOrchestrator([]model.POI{poi}, facts, prompt.NoStoryMarker, nil)
	decision, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decision.ShouldSpeak || decision.Reason != "model_no_story" {
		t.Fatalf("got %+v, want model_no_story", decision)
	}

	heard, _ := o.history.HeardSet(context.Background(), "user1")
	if _, ok := heard["osm:1"]; ok {
		t.Error("expected poi NOT marked heard on silent decision")
	}
	if len(expStore.records) != 1 || expStore.records[0].ShouldSpeak {
		t.Fatalf("expected 1 silent exposure record, got %+v", expStore.records)
	}
}

func TestDecide_TTSFatalError_BubblesAsHTTPError(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, expStore, _ := newTestOrchestrator([]model.POI{poi}, facts, words(50), tts.NewFatalError(503, "fatal tts error"))
	_, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v (%T)", err, err)
	}
	if httpErr.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want the upstream 503 preserved", httpErr.StatusCode)
	}

	heard, _ := o.history.HeardSet(context.Background(), "user1")
	if _, ok := heard["osm:1"]; ok {
		t.Error("expected poi NOT marked heard on TTS failure")
	}
	if len(expStore.records) != 1 || expStore.records[0].ShouldSpeak {
		t.Fatalf("expected 1 silent exposure record, got %+v", expStore.records)
	}
}

func TestDecide_TTSFatalError_DefaultsTo502WhenStatusUnknown(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, _, _ := newTestOrchestrator([]model.POI{poi}, facts, words(50), tts.NewFatalError(0, "dial failed"))
	_, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v (%T)", err, err)
	}
	if httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, http.StatusBadGateway)
	}
}

func TestDecide_GeneratorFailure_PreservesUpstreamStatus(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, expStore, _ := newTestOrchestrator([]model.POI{poi}, facts, "", nil)
	o.generator = &failingGenerator{err: &request.StatusError{StatusCode: 429}}

	_, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v (%T)", err, err)
	}
	if httpErr.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want the upstream 429 preserved", httpErr.StatusCode)
	}
	if len(expStore.records) != 1 || expStore.records[0].ShouldSpeak {
		t.Fatalf("expected 1 silent exposure record, got %+v", expStore.records)
	}
}

func TestDecide_GeneratorFailure_DefaultsTo500WhenStatusUnknown(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, _, _ := newTestOrchestrator([]model.POI{poi}, facts, "", nil)
	o.generator = &failingGenerator{err: errors.New("connection reset")}

	_, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v (%T)", err, err)
	}
	if httpErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, http.StatusInternalServerError)
	}
}

func TestDecide_HeardPOIIsSkipped(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, _, _ := newTestOrchestrator([]model.POI{poi}, facts, words(50), nil)
	_ = o.history.MarkHeard(context.Background(), "user1", "osm:1")

	decision, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.ShouldSpeak {
		t.Fatalf("expected no candidate since the only POI was already heard, got %+v", decision)
	}
	if decision.Reason != "no_strong_poi" {
		t.Errorf("reason = %q, want no_strong_poi", decision.Reason)
	}
}

func TestDecide_RepeatedQuery_SkipsAdapterFetch(t *testing.T) {
	poi := model.POI{Key: "osm:1", Label: "Old City", Lat: 31.771, Lng: 35.211, Source: model.SourceOSM}
	facts := map[string][]model.AnchoredFact{"osm:1": denseFacts(12, 3)}

	o, _, osm := newTestOrchestrator([]model.POI{poi}, facts, words(50), nil)

	if _, err := o.Decide(context.Background(), 31.77, 35.21, "user1", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	callsAfterFirst := osm.calls
	if callsAfterFirst == 0 {
		t.Fatal("expected the first query to call the adapter")
	}

	// Same bucket, different user: must be served from the normalizer's
	// cache without a second adapter call (spec.md P6).
	if _, err := o.Decide(context.Background(), 31.77, 35.21, "user2", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if osm.calls != callsAfterFirst {
		t.Errorf("expected repeated identical-bucket query to trigger zero additional adapter calls, calls went from %d to %d", callsAfterFirst, osm.calls)
	}
}
