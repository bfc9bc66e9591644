package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"wayfarer/pkg/history"
	"wayfarer/pkg/model"
	"wayfarer/pkg/orchestrator"
	"wayfarer/pkg/version"
)

const maxFactsInResponse = 8

// StoryHandler serves POST /api/story-both, the sole decision endpoint
// (spec.md §6).
type StoryHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewStoryHandler creates a StoryHandler backed by orc.
func NewStoryHandler(orc *orchestrator.Orchestrator) *StoryHandler {
	return &StoryHandler{orchestrator: orc}
}

type poiResponse struct {
	Key         string `json:"key"`
	Source      string `json:"source"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Anchor      bool   `json:"anchor,omitempty"`
}

type audioResponse struct {
	ContentType string `json:"contentType"`
	Base64      string `json:"base64"`
	Bytes       int    `json:"bytes"`
}

type storyBothResponse struct {
	ShouldSpeak          bool           `json:"shouldSpeak"`
	Reason               string         `json:"reason"`
	POI                  *poiResponse   `json:"poi"`
	Facts                []string       `json:"facts"`
	Text                 string         `json:"text"`
	StoryText            string         `json:"storyText"`
	AudioBase64          string         `json:"audioBase64,omitempty"`
	AudioContentType     string         `json:"audioContentType,omitempty"`
	Audio                *audioResponse `json:"audio,omitempty"`
	DistanceMetersApprox float64        `json:"distanceMetersApprox"`
	Lang                 string         `json:"lang"`
	Version              string         `json:"version"`
	TimingMs             int64          `json:"timingMs"`
}

func (h *StoryHandler) HandleStoryBoth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	raw, err := decodeLooseJSON(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lat, ok := floatField(raw, "lat", "latitude", "Latitude")
	if !ok {
		writeError(w, http.StatusBadRequest, "location_missing", "lat/latitude is required")
		return
	}
	lng, ok := floatField(raw, "lng", "lon", "longitude", "Longitude")
	if !ok {
		writeError(w, http.StatusBadRequest, "location_missing", "lng/longitude is required")
		return
	}

	lang, _ := stringField(raw, "lang", "language", "locale", "speechLang")
	lang = normalizeLang(lang)

	userKey, _ := stringField(raw, "userId")
	if userKey == "" {
		userKey = history.UserKey(r)
	}

	decision, err := h.orchestrator.Decide(r.Context(), lat, lng, userKey, lang)
	if err != nil {
		status := http.StatusInternalServerError
		var httpErr *orchestrator.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode > 0 {
			status = httpErr.StatusCode
		}
		writeError(w, status, "story_generation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toStoryResponse(decision, lang, time.Since(start)))
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "en"
	}
	if len(lang) > 5 {
		lang = lang[:5]
	}
	return lang
}

func toStoryResponse(d model.Decision, lang string, elapsed time.Duration) storyBothResponse {
	resp := storyBothResponse{
		ShouldSpeak:          d.ShouldSpeak,
		Reason:               d.Reason,
		Facts:                factTexts(d.Facts),
		DistanceMetersApprox: d.DistanceMetersApprox,
		Lang:                 lang,
		Version:              version.Version,
		TimingMs:             elapsed.Milliseconds(),
	}

	if d.POI != nil {
		resp.POI = &poiResponse{
			Key:    d.POI.Key,
			Source: string(d.POI.Source),
			Label:  d.POI.Label,
			Anchor: anyAnchored(d.Facts),
		}
		if len(d.Facts) > 0 {
			resp.POI.Description = d.Facts[0].Text
		}
	}

	if d.ShouldSpeak {
		resp.Text = d.StoryText
		resp.StoryText = d.StoryText
		b64 := base64.StdEncoding.EncodeToString(d.AudioBytes)
		resp.AudioBase64 = b64
		resp.AudioContentType = d.AudioContentType
		resp.Audio = &audioResponse{
			ContentType: d.AudioContentType,
			Base64:      b64,
			Bytes:       len(d.AudioBytes),
		}
	}

	return resp
}

func factTexts(facts []model.AnchoredFact) []string {
	n := len(facts)
	if n > maxFactsInResponse {
		n = maxFactsInResponse
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = facts[i].Text
	}
	return out
}

func anyAnchored(facts []model.AnchoredFact) bool {
	for _, f := range facts {
		if f.Anchored() {
			return true
		}
	}
	return false
}
