package facts

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"wayfarer/pkg/articleproc"
	"wayfarer/pkg/cache"
	"wayfarer/pkg/llm"
	"wayfarer/pkg/model"
	"wayfarer/pkg/wikidata"
	"wayfarer/pkg/wikipedia"
)

const (
	maxExtractChars  = 12000
	minSentenceChars = 25
	maxSentenceChars = 260
	fallbackSentences = 10
	minFacts         = 8
	maxFacts         = 14
)

var yearPattern = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)
var numberPattern = regexp.MustCompile(`\b(\d{2,})\b`)

// EncyclopediaExtractor mines atomic facts from an encyclopedia article's
// plain-text (or, failing that, parsed HTML) extract.
type EncyclopediaExtractor struct {
	wikipedia *wikipedia.Client
	wikidata  *wikidata.Client
	llmProv   llm.Provider
	signals   map[string][]string
	cache     *cache.TTLCache[[]model.Fact]
	ttl       time.Duration
}

// NewEncyclopediaExtractor creates an encyclopedia-backed fact extractor.
func NewEncyclopediaExtractor(w *wikipedia.Client, wd *wikidata.Client, provider llm.Provider, signals map[string][]string, ttl time.Duration) *EncyclopediaExtractor {
	return &EncyclopediaExtractor{
		wikipedia: w,
		wikidata:  wd,
		llmProv:   provider,
		signals:   signals,
		cache:     cache.New[[]model.Fact](),
		ttl:       ttl,
	}
}

// Resolve picks an {lang, title} encyclopedia reference for poi: an
// OSM-provided tag wins outright; otherwise a sitelink is looked up via
// the knowledge graph with fallback chain targetLang, he, en, fr.
func (e *EncyclopediaExtractor) Resolve(ctx context.Context, poi model.POI, targetLang string) (*model.EncyclopediaRef, error) {
	if poi.EncyclopediaRef != nil {
		return poi.EncyclopediaRef, nil
	}
	if poi.GraphID == "" {
		return nil, nil
	}

	langs := []string{targetLang, "he", "en", "fr"}
	sites := make([]string, 0, len(langs))
	for _, l := range langs {
		sites = append(sites, l+"wiki")
	}

	data, err := e.wikidata.FetchFallbackData(ctx, []string{poi.GraphID}, sites)
	if err != nil {
		return nil, err
	}
	fd, ok := data[poi.GraphID]
	if !ok {
		return nil, nil
	}

	for _, l := range langs {
		if title, ok := fd.Sitelinks[l+"wiki"]; ok && title != "" {
			return &model.EncyclopediaRef{Lang: l, Title: title}, nil
		}
	}
	return nil, nil
}

// Extract mines atomic facts from the article at ref, cached per
// (lang, pageTitle).
func (e *EncyclopediaExtractor) Extract(ctx context.Context, ref model.EncyclopediaRef) ([]model.Fact, error) {
	key := ref.Lang + "|" + ref.Title
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	text, err := e.fetchText(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(text) > maxExtractChars {
		text = text[:maxExtractChars]
	}

	candidates := selectCandidateSentences(text, e.signals[ref.Lang])

	facts, err := e.extractViaLLM(ctx, candidates, ref.Lang)
	if err != nil {
		return nil, err
	}

	e.cache.Set(key, facts, e.ttl)
	return facts, nil
}

func (e *EncyclopediaExtractor) fetchText(ctx context.Context, ref model.EncyclopediaRef) (string, error) {
	text, err := e.wikipedia.GetArticleContent(ctx, ref.Title, ref.Lang)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	html, herr := e.wikipedia.GetArticleHTML(ctx, ref.Title, ref.Lang)
	if herr != nil {
		if err != nil {
			return "", err
		}
		return "", herr
	}

	info, perr := articleproc.ExtractProse(strings.NewReader(html))
	if perr != nil {
		return "", perr
	}
	return info.Prose, nil
}

// selectCandidateSentences implements spec.md §4.6(3): split on sentence
// terminators, keep sentences in [25,260] chars that also carry a
// 4-digit year in [1500,2099], a number >= 10 alongside a signal token,
// or a signal token alone. Falls back to the first 10 sentences.
func selectCandidateSentences(text string, signals []string) []string {
	sentences := splitSentences(text)

	var candidates []string
	for _, s := range sentences {
		trimmed := strings.TrimSpace(s)
		if len(trimmed) < minSentenceChars || len(trimmed) > maxSentenceChars {
			continue
		}
		if hasYear(trimmed) || hasSignalWithNumber(trimmed, signals) || hasSignal(trimmed, signals) {
			candidates = append(candidates, trimmed)
		}
	}

	if len(candidates) == 0 {
		limit := fallbackSentences
		if len(sentences) < limit {
			limit = len(sentences)
		}
		for _, s := range sentences[:limit] {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				candidates = append(candidates, trimmed)
			}
		}
	}

	return candidates
}

func splitSentences(text string) []string {
	return regexp.MustCompile(`[.!?]+\s+`).Split(text, -1)
}

func hasYear(s string) bool {
	return yearPattern.MatchString(s)
}

func hasSignal(s string, signals []string) bool {
	lower := strings.ToLower(s)
	for _, sig := range signals {
		if strings.Contains(lower, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}

func hasSignalWithNumber(s string, signals []string) bool {
	if !hasSignal(s, signals) {
		return false
	}
	for _, m := range numberPattern.FindAllString(s, -1) {
		if n, err := strconv.Atoi(m); err == nil && n >= 10 {
			return true
		}
	}
	return false
}

type factExtractionResult struct {
	Facts []string `json:"facts"`
}

func (e *EncyclopediaExtractor) extractViaLLM(ctx context.Context, candidates []string, lang string) ([]model.Fact, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := buildFactExtractionPrompt(candidates, lang)

	var result factExtractionResult
	if err := e.llmProv.GenerateJSON(ctx, "fact_extract", prompt, &result); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(result.Facts))
	facts := make([]model.Fact, 0, len(result.Facts))
	for _, f := range result.Facts {
		text := normalizeFactText(f)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		facts = append(facts, model.Fact{Text: text})
	}

	return facts, nil
}

func buildFactExtractionPrompt(candidates []string, lang string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Extract between %d and %d atomic facts from the sentences below, in language %q.\n", minFacts, maxFacts, lang))
	b.WriteString("Use only information present in the sentences, no outside knowledge. No duplicates. One short sentence per fact.\n")
	b.WriteString(`Respond as JSON: {"facts": ["...", "..."]}` + "\n\nSENTENCES:\n")
	for i, c := range candidates {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, c))
	}
	return b.String()
}

func normalizeFactText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.TrimRight(s, ".!? ")
	return s + "."
}
