package facts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wayfarer/pkg/cache"
	"wayfarer/pkg/model"
	"wayfarer/pkg/request"
	"wayfarer/pkg/tracker"
	"wayfarer/pkg/wikipedia"
)

type fakeLLM struct {
	facts []string
	err   error
}

func (f *fakeLLM) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	return "", nil
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, name, prompt string, target any) error {
	if f.err != nil {
		return f.err
	}
	b, _ := json.Marshal(factExtractionResult{Facts: f.facts})
	return json.Unmarshal(b, target)
}

func (f *fakeLLM) GenerateImageText(ctx context.Context, name, prompt, imagePath string) (string, error) {
	return "", nil
}

func (f *fakeLLM) HasProfile(name string) bool { return true }

func (f *fakeLLM) ValidateModels(ctx context.Context) error { return nil }

func newTestWikipediaClient(url string) *wikipedia.Client {
	c := wikipedia.NewClient(request.New(cache.NewStoreBackedCache(nil), tracker.New()))
	c.APIEndpoint = url
	return c
}

func TestEncyclopediaExtractor_Extract(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":{"pages":{"1":{"extract":"The fortress was built in 1285 by the Knights Hospitaller. It has 40 rooms and hosted many battles over the centuries."}}}}`))
	}))
	defer svr.Close()

	llm := &fakeLLM{facts: []string{"It was built in 1285", "It has 40 rooms"}}
	e := NewEncyclopediaExtractor(newTestWikipediaClient(svr.URL), nil, llm, nil, time.Minute)

	facts, err := e.Extract(context.Background(), model.EncyclopediaRef{Lang: "en", Title: "Acre Fortress"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d: %+v", len(facts), facts)
	}
	if facts[0].Text != "It was built in 1285." {
		t.Errorf("fact[0] = %q", facts[0].Text)
	}
}

func TestEncyclopediaExtractor_Extract_CachesPerRef(t *testing.T) {
	calls := 0
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":{"pages":{"1":{"extract":"It was founded in 1900 with 500 residents nearby."}}}}`))
	}))
	defer svr.Close()

	llm := &fakeLLM{facts: []string{"It was founded in 1900"}}
	e := NewEncyclopediaExtractor(newTestWikipediaClient(svr.URL), nil, llm, nil, time.Minute)
	ref := model.EncyclopediaRef{Lang: "en", Title: "Some Village"}

	if _, err := e.Extract(context.Background(), ref); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract(context.Background(), ref); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}

func TestSelectCandidateSentences_SignalWithNumber(t *testing.T) {
	text := "This is a filler sentence with nothing notable at all here today. The village has 250 residents according to the last census records available."
	candidates := selectCandidateSentences(text, []string{"residents"})
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %v", len(candidates), candidates)
	}
}

func TestSelectCandidateSentences_Year(t *testing.T) {
	text := "Nothing interesting happens in this short filler clause at all. The fortress was constructed in 1822 by local authorities of the region."
	candidates := selectCandidateSentences(text, nil)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %v", len(candidates), candidates)
	}
}

func TestSelectCandidateSentences_FallsBackToFirstTen(t *testing.T) {
	text := "Short one. Short two. Short three."
	candidates := selectCandidateSentences(text, nil)
	if len(candidates) == 0 {
		t.Fatal("expected fallback candidates, got none")
	}
}

func TestNormalizeFactText(t *testing.T) {
	tests := map[string]string{
		"  hello world  ": "hello world.",
		"already done.":   "already done.",
		"":                 "",
		"question?":        "question.",
	}
	for in, want := range tests {
		if got := normalizeFactText(in); got != want {
			t.Errorf("normalizeFactText(%q) = %q, want %q", in, got, want)
		}
	}
}
