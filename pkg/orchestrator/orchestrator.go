// Package orchestrator binds the full pipeline (C3-C9) behind one
// entry point: given a location, it selects a POI, grounds a story in
// its facts, synthesizes audio, and records the decision (C10).
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wayfarer/pkg/exposure"
	"wayfarer/pkg/geo"
	"wayfarer/pkg/history"
	"wayfarer/pkg/model"
	"wayfarer/pkg/narration"
	"wayfarer/pkg/normalize"
	"wayfarer/pkg/prompt"
	"wayfarer/pkg/request"
	"wayfarer/pkg/scorer"
	"wayfarer/pkg/source"
	"wayfarer/pkg/tts"
)

const interesting = true // no "interesting" toggle is exposed on the request contract; always run the standard fan-out.

// HTTPError marks a terminal orchestrator failure - generator or TTS -
// that must propagate to the HTTP layer as a non-2xx response rather
// than collapse into a silent decision (spec.md §7's propagation
// policy: "surfaces only truly terminal errors (generator/TTS) and
// input errors").
type HTTPError struct {
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string { return e.Err.Error() }
func (e *HTTPError) Unwrap() error { return e.Err }

// terminalError wraps err as an HTTPError, preserving the upstream
// status code carried by a *request.StatusError or *tts.FatalError when
// one is present, and falling back to defaultStatus otherwise (spec.md
// §7: "the request fails with the upstream status preserved when it is
// a numeric status, else 500").
func terminalError(defaultStatus int, err error) error {
	var se *request.StatusError
	if errors.As(err, &se) && se.StatusCode > 0 {
		return &HTTPError{StatusCode: se.StatusCode, Err: err}
	}
	var fe *tts.FatalError
	if errors.As(err, &fe) && fe.StatusCode > 0 {
		return &HTTPError{StatusCode: fe.StatusCode, Err: err}
	}
	return &HTTPError{StatusCode: defaultStatus, Err: err}
}

// Orchestrator wires the aggregation pipeline, the fact/scoring layer,
// and the generation/validation loop into one request-scoped decision.
type Orchestrator struct {
	fanout     *source.Fanout
	normalizer *normalize.Normalizer
	scorer     *scorer.Scorer
	history    *history.Store
	generator  narration.Generator
	tts        tts.Provider
	exposure   *exposure.Log
	bounds     prompt.Bounds
	bannedByLang map[string][]string

	radiusStepsMeters []int

	logger *slog.Logger
}

// Config bundles Orchestrator's construction-time dependencies.
type Config struct {
	Fanout            *source.Fanout
	Normalizer        *normalize.Normalizer
	Scorer            *scorer.Scorer
	History           *history.Store
	Generator         narration.Generator
	TTS               tts.Provider
	Exposure          *exposure.Log
	Bounds            prompt.Bounds
	BannedByLang      map[string][]string
	RadiusStepsMeters []int
	Logger            *slog.Logger
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		fanout:            cfg.Fanout,
		normalizer:        cfg.Normalizer,
		scorer:            cfg.Scorer,
		history:           cfg.History,
		generator:         cfg.Generator,
		tts:               cfg.TTS,
		exposure:          cfg.Exposure,
		bounds:            cfg.Bounds,
		bannedByLang:      cfg.BannedByLang,
		radiusStepsMeters: cfg.RadiusStepsMeters,
		logger:            cfg.Logger,
	}
}

// Decide runs the full pipeline for one request (spec.md §4.10):
// 1. Expand radius [500,900,1500,2400]m, stopping at the first radius
//    yielding a scorer candidate.
// 2. Build the FACTS block, generate, validate, repair if needed.
// 3. On success: synthesize audio, mark history, append an exposure
//    record, and return the full envelope.
// 4. On NO_STORY at any stage: no synthesis, no history mark, silent
//    decision with a specific reason.
// A non-nil error is always an *HTTPError - a terminal generator or TTS
// failure - and the returned Decision must be ignored.
func (o *Orchestrator) Decide(ctx context.Context, lat, lng float64, userKey, lang string) (model.Decision, error) {
	heard, err := o.history.HeardSet(ctx, userKey)
	if err != nil {
		o.logger.Warn("orchestrator: failed to load heard set, continuing with empty set", "userKey", userKey, "error", err)
		heard = map[string]struct{}{}
	}

	for _, radiusM := range o.radiusStepsMeters {
		candidate := o.selectCandidate(ctx, lat, lng, radiusM, lang, heard)
		if candidate == nil {
			continue
		}

		return o.narrateAndRecord(ctx, *candidate, lat, lng, userKey, lang)
	}

	return model.Decision{ShouldSpeak: false, Reason: "no_strong_poi"}, nil
}

// selectCandidate checks the normalizer's geo-bucket cache before
// touching any adapter: two identical queries within GEO_CACHE_TTL_MS
// must trigger zero additional adapter calls (spec.md P6), so fanout.Fetch
// only runs on a cache miss, inside the thunk passed to Normalize.
func (o *Orchestrator) selectCandidate(ctx context.Context, lat, lng float64, radiusM int, lang string, heard map[string]struct{}) *model.PoiWithFacts {
	normalized := o.normalizer.Normalize(lat, lng, radiusM, func() []model.POI {
		return o.fanout.Fetch(ctx, lat, lng, radiusM, lang, interesting)
	})

	for i := range normalized {
		normalized[i].DistanceMeters = geo.DistanceMeters(lat, lng, normalized[i].Lat, normalized[i].Lng)
	}

	candidate, err := o.scorer.Select(ctx, normalized, heard, lang)
	if err != nil {
		o.logger.Warn("orchestrator: scoring failed", "radiusM", radiusM, "error", err)
		return nil
	}
	return candidate
}

func (o *Orchestrator) narrateAndRecord(ctx context.Context, candidate model.PoiWithFacts, lat, lng float64, userKey, lang string) (model.Decision, error) {
	req := prompt.Request{
		PlaceName:      candidate.POI.Label,
		DistanceMeters: candidate.POI.DistanceMeters,
		Lang:           lang,
		Facts:          candidate.Facts,
		Bounds:         o.bounds,
	}

	result, err := narration.Narrate(ctx, o.generator, req, o.bannedByLang[lang])
	if err != nil {
		// Generator failure bubbles as a terminal 5xx (spec.md §7); the
		// POI is not marked heard so it can be retried.
		o.logger.Error("orchestrator: narration failed", "poiKey", candidate.POI.Key, "error", err)
		o.recordExposure(ctx, candidate, lat, lng, userKey, false, "generation_failed", 0)
		return model.Decision{}, terminalError(http.StatusInternalServerError, err)
	}

	if !result.ShouldSpeak {
		o.recordExposure(ctx, candidate, lat, lng, userKey, false, result.Reason, 0)
		return model.Decision{ShouldSpeak: false, Reason: result.Reason}, nil
	}

	audio, contentType, err := o.tts.Synthesize(ctx, result.StoryText, lang)
	if err != nil {
		// TTS failure bubbles as a terminal 5xx too (spec.md §7); the
		// POI is not marked heard so it can be retried.
		o.logger.Error("orchestrator: TTS synthesis failed", "poiKey", candidate.POI.Key, "error", err)
		o.recordExposure(ctx, candidate, lat, lng, userKey, false, "tts_failed", len(result.StoryText))
		return model.Decision{}, terminalError(http.StatusBadGateway, err)
	}

	if err := o.history.MarkHeard(ctx, userKey, candidate.POI.Key); err != nil {
		o.logger.Warn("orchestrator: failed to mark heard", "userKey", userKey, "poiKey", candidate.POI.Key, "error", err)
	}

	o.recordExposure(ctx, candidate, lat, lng, userKey, true, "ok", len(result.StoryText))

	poi := candidate.POI
	return model.Decision{
		ShouldSpeak:          true,
		Reason:               "ok",
		POI:                  &poi,
		Facts:                candidate.Facts,
		StoryText:            result.StoryText,
		DistanceMetersApprox: geo.RoundDistance(candidate.POI.DistanceMeters, 50),
		AudioBytes:           audio,
		AudioContentType:     contentType,
	}, nil
}

func (o *Orchestrator) recordExposure(ctx context.Context, candidate model.PoiWithFacts, lat, lng float64, userKey string, shouldSpeak bool, reason string, storyLen int) {
	o.exposure.Append(ctx, model.ExposureRecord{
		Timestamp:   time.Now(),
		UserKey:     userKey,
		Lat:         lat,
		Lng:         lng,
		PoiKey:      candidate.POI.Key,
		PoiName:     candidate.POI.Label,
		PoiSource:   string(candidate.POI.Source),
		Distance:    candidate.POI.DistanceMeters,
		Reason:      reason,
		ShouldSpeak: shouldSpeak,
		StoryLen:    storyLen,
	})
}
