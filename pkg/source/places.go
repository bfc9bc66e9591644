package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"wayfarer/pkg/config"
	"wayfarer/pkg/model"
	"wayfarer/pkg/request"
)

// Places is the commercial nearby-search fallback adapter, invoked only
// when OSM and graph both yield zero candidates or when Fanout runs with
// interesting mode off (spec.md §4.4).
type Places struct {
	cfg     config.PlacesConfig
	request *request.Client
}

// NewPlaces creates a places-backed adapter.
func NewPlaces(cfg config.PlacesConfig, r *request.Client) *Places {
	return &Places{cfg: cfg, request: r}
}

func (p *Places) Fetch(ctx context.Context, lat, lng float64, radiusM int, lang string) []model.POI {
	reqBody, err := json.Marshal(placesRequest{
		LocationRestriction: placesLocationRestriction{
			Circle: placesCircle{
				Center: placesLatLng{Latitude: lat, Longitude: lng},
				Radius: float64(radiusM),
			},
		},
		LanguageCode: lang,
	})
	if err != nil {
		slog.Warn("places: failed to encode request", "error", err)
		return nil
	}

	headers := map[string]string{
		"Content-Type":     "application/json",
		"X-Goog-Api-Key":   p.cfg.Key,
		"X-Goog-FieldMask": "places.id,places.displayName,places.location,places.types",
	}

	body, err := p.request.PostWithHeaders(ctx, p.cfg.BaseURL, reqBody, headers)
	if err != nil {
		slog.Warn("places: fetch failed", "error", err)
		return nil
	}

	var resp placesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		slog.Warn("places: response parse failed", "error", err)
		return nil
	}

	pois := make([]model.POI, 0, len(resp.Places))
	for _, place := range resp.Places {
		poi := model.POI{
			Key:       fmt.Sprintf("places:%s", place.ID),
			Source:    model.SourcePlaces,
			Label:     place.DisplayName.Text,
			Lat:       place.Location.Latitude,
			Lng:       place.Location.Longitude,
			KindHints: place.Types,
		}
		if !poi.Valid() {
			continue
		}
		pois = append(pois, poi)
	}
	return pois
}

type placesRequest struct {
	LocationRestriction placesLocationRestriction `json:"locationRestriction"`
	LanguageCode        string                    `json:"languageCode"`
}

type placesLocationRestriction struct {
	Circle placesCircle `json:"circle"`
}

type placesCircle struct {
	Center placesLatLng `json:"center"`
	Radius float64      `json:"radius"`
}

type placesLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type placesResponse struct {
	Places []placesPlace `json:"places"`
}

type placesPlace struct {
	ID          string          `json:"id"`
	DisplayName placesTextField `json:"displayName"`
	Location    placesLatLng    `json:"location"`
	Types       []string        `json:"types"`
}

type placesTextField struct {
	Text string `json:"text"`
}
