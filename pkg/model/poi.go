// Package model holds the data types shared across the aggregation
// pipeline, the fact extraction layer, and the generation/validation loop.
package model

import "time"

// Source identifies which upstream provider produced a POI or fact.
type Source string

const (
	SourceOSM          Source = "osm"
	SourceGraph        Source = "graph"
	SourcePlaces       Source = "places"
	SourceAnchor       Source = "anchor"
	SourceEncyclopedia Source = "encyclopedia"
)

// EncyclopediaRef points at a specific-language encyclopedia page.
type EncyclopediaRef struct {
	Lang  string `json:"lang"`
	Title string `json:"title"`
}

// POI is the normalized point-of-interest record produced by the
// normalizer (C5) from heterogeneous source adapter output (C4).
type POI struct {
	Key             string           `json:"key"` // "<source>:<native-id>"
	Source          Source           `json:"source"`
	Label           string           `json:"label"`
	Lat             float64          `json:"lat"`
	Lng             float64          `json:"lng"`
	KindHints       []string         `json:"kindHints,omitempty"`
	GraphID         string           `json:"graphId,omitempty"`
	EncyclopediaRef *EncyclopediaRef `json:"encyclopediaRef,omitempty"`
	RawTags         map[string]any   `json:"rawTags,omitempty"`

	// DistanceMeters is populated by the caller at selection time; it is
	// not part of the provider payload.
	DistanceMeters float64 `json:"-"`
}

// Valid reports whether the POI satisfies the normalization invariants:
// finite, in-range coordinates and at least one identifying field.
func (p *POI) Valid() bool {
	if p == nil {
		return false
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return false
	}
	if p.Label == "" && p.GraphID == "" && p.EncyclopediaRef == nil {
		return false
	}
	return true
}

// Fact is a single verifiable atomic sentence about a POI.
type Fact struct {
	Text string `json:"text"`
}

// AnchoredFact decorates a Fact with the concrete-anchor flags used by
// the scorer (C7) and the grounding validator (P1/P2).
type AnchoredFact struct {
	Fact
	HasYear        bool `json:"hasYear"`
	HasDate        bool `json:"hasDate"`
	HasNamedEvent  bool `json:"hasNamedEvent"`
	HasNamedPerson bool `json:"hasNamedPerson"`
}

// Anchored reports whether this fact carries any concrete anchor.
func (a AnchoredFact) Anchored() bool {
	return a.HasYear || a.HasDate || a.HasNamedEvent || a.HasNamedPerson
}

// FactSource cites where a fact (or group of facts) came from.
type FactSource struct {
	Type  Source `json:"type"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// PoiWithFacts is a candidate POI decorated with its merged, de-duplicated
// fact set and provenance.
type PoiWithFacts struct {
	POI     POI            `json:"poi"`
	Facts   []AnchoredFact `json:"facts"`
	Sources []FactSource   `json:"sources"`
}

// AnchorCount returns the number of anchored facts.
func (p *PoiWithFacts) AnchorCount() int {
	n := 0
	for _, f := range p.Facts {
		if f.Anchored() {
			n++
		}
	}
	return n
}

// HistoryEntry records that a user has already been narrated a POI.
type HistoryEntry struct {
	UserKey     string    `json:"userKey"`
	PoiKey      string    `json:"poiKey"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
}

// Decision is the orchestrator's terminal output for one request.
type Decision struct {
	ShouldSpeak          bool           `json:"shouldSpeak"`
	Reason               string         `json:"reason"`
	POI                  *POI           `json:"poi,omitempty"`
	Facts                []AnchoredFact `json:"facts,omitempty"`
	StoryText            string         `json:"storyText,omitempty"`
	DistanceMetersApprox float64        `json:"distanceMetersApprox,omitempty"`
	AudioBytes           []byte         `json:"-"`
	AudioContentType     string         `json:"-"`
}

// ExposureRecord is an append-only log entry for every orchestrator
// decision, spoken or silent.
type ExposureRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	UserKey     string    `json:"userKey"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	PoiKey      string    `json:"poiKey"`
	PoiName     string    `json:"poiName"`
	PoiSource   string    `json:"poiSource"`
	Distance    float64   `json:"distanceMeters"`
	Reason      string    `json:"reason"`
	ShouldSpeak bool      `json:"shouldSpeak"`
	StoryLen    int       `json:"storyLen"`
}

// TasteProfile conditions prompt generation but never gates facts.
type TasteProfile struct {
	ID        string    `json:"id,omitempty"`
	Humor     float64   `json:"humor"`
	Nerdy     float64   `json:"nerdy"`
	Dramatic  float64   `json:"dramatic"`
	Shortness float64   `json:"shortness"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DefaultTasteProfile returns the neutral default used when no profile
// has been set for a user.
func DefaultTasteProfile() TasteProfile {
	return TasteProfile{Humor: 0.4, Nerdy: 0.5, Dramatic: 0.4, Shortness: 0.4}
}

// Clamp01 clamps a taste dimension into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
