package api

import (
	"context"
	"net/http"
	"time"

	"wayfarer/pkg/model"
)

// TasteStore is the persistence boundary TasteHandler depends on.
type TasteStore interface {
	GetTasteProfile(ctx context.Context, id string) (*model.TasteProfile, bool, error)
	SaveTasteProfile(ctx context.Context, p model.TasteProfile) error
}

// TasteHandler serves the peripheral taste-tuning endpoints (spec.md §6):
// POST /api/taste/feedback and POST /api/taste/set.
type TasteHandler struct {
	store TasteStore
}

// NewTasteHandler creates a TasteHandler backed by store.
func NewTasteHandler(store TasteStore) *TasteHandler {
	return &TasteHandler{store: store}
}

func (h *TasteHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeLooseJSON(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	profile, id := h.loadProfile(r.Context(), raw)

	if taste, ok := raw["taste"].(map[string]any); ok {
		if v, ok := taste["humor"].(float64); ok {
			profile.Humor = model.Clamp01(v)
		}
		if v, ok := taste["nerdy"].(float64); ok {
			profile.Nerdy = model.Clamp01(v)
		}
		if v, ok := taste["dramatic"].(float64); ok {
			profile.Dramatic = model.Clamp01(v)
		}
		if v, ok := taste["shortness"].(float64); ok {
			profile.Shortness = model.Clamp01(v)
		}
	}

	h.save(r.Context(), w, id, profile)
}

func (h *TasteHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeLooseJSON(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	profile, id := h.loadProfile(r.Context(), raw)

	const nudge = 0.1
	if liked, ok := raw["liked"].(bool); ok {
		if liked {
			profile.Nerdy = model.Clamp01(profile.Nerdy + nudge/2)
		} else {
			profile.Nerdy = model.Clamp01(profile.Nerdy - nudge/2)
		}
	}
	if v, ok := raw["moreHumor"].(bool); ok && v {
		profile.Humor = model.Clamp01(profile.Humor + nudge)
	}
	if v, ok := raw["moreNerdy"].(bool); ok && v {
		profile.Nerdy = model.Clamp01(profile.Nerdy + nudge)
	}
	if v, ok := raw["shorter"].(bool); ok && v {
		profile.Shortness = model.Clamp01(profile.Shortness + nudge)
	}
	if v, ok := raw["moreDramatic"].(bool); ok && v {
		profile.Dramatic = model.Clamp01(profile.Dramatic + nudge)
	}

	h.save(r.Context(), w, id, profile)
}

func (h *TasteHandler) loadProfile(ctx context.Context, raw map[string]any) (model.TasteProfile, string) {
	id, ok := stringField(raw, "tasteProfileId", "userId")
	if !ok {
		id = "default"
	}

	existing, found, err := h.store.GetTasteProfile(ctx, id)
	if err != nil || !found {
		p := model.DefaultTasteProfile()
		p.ID = id
		return p, id
	}
	return *existing, id
}

func (h *TasteHandler) save(ctx context.Context, w http.ResponseWriter, id string, profile model.TasteProfile) {
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	profile.ID = id

	if err := h.store.SaveTasteProfile(ctx, profile); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save taste profile", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
