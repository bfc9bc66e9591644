package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"wayfarer/pkg/config"
	"wayfarer/pkg/model"
	"wayfarer/pkg/request"
)

const osmMaxElements = 180

// osmTagKinds is the union query from spec.md §4.4: historic | tourism in
// {attraction, viewpoint} | memorial | natural | place.
var osmTagKinds = []string{
	`"historic"`,
	`"tourism"="attraction"`,
	`"tourism"="viewpoint"`,
	`"memorial"`,
	`"natural"`,
	`"place"`,
}

// OSM fetches candidates from an Overpass API instance.
type OSM struct {
	cfg     config.OSMConfig
	request *request.Client
}

// NewOSM creates an Overpass-backed adapter.
func NewOSM(cfg config.OSMConfig, r *request.Client) *OSM {
	return &OSM{cfg: cfg, request: r}
}

func (o *OSM) Fetch(ctx context.Context, lat, lng float64, radiusM int, lang string) []model.POI {
	query := o.buildQuery(lat, lng, radiusM)

	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"User-Agent":   o.cfg.UserAgent,
	}

	form := url.Values{}
	form.Set("data", query)

	body, err := o.request.PostWithHeaders(ctx, o.cfg.OverpassBaseURL, []byte(form.Encode()), headers)
	if err != nil {
		slog.Warn("osm: overpass fetch failed", "error", err)
		return nil
	}

	var resp overpassResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		slog.Warn("osm: overpass response parse failed", "error", err)
		return nil
	}

	pois := make([]model.POI, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		poi, ok := o.toPOI(el, lang)
		if !ok {
			continue
		}
		pois = append(pois, poi)
	}
	return pois
}

func (o *OSM) buildQuery(lat, lng float64, radiusM int) string {
	var clauses strings.Builder
	for _, kind := range osmTagKinds {
		for _, elemType := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&clauses, "%s[%s](around:%d,%f,%f);\n", elemType, kind, radiusM, lat, lng)
		}
	}
	return fmt.Sprintf(`[out:json][timeout:25];
(
%s
);
out center %d;`, clauses.String(), osmMaxElements)
}

func (o *OSM) toPOI(el overpassElement, lang string) (model.POI, bool) {
	poiLat, poiLng, ok := o.centerOf(el)
	if !ok {
		return model.POI{}, false
	}

	label := o.labelOf(el, lang)
	key := fmt.Sprintf("osm:%s/%d", el.Type, el.ID)

	kindHints := make([]string, 0, len(el.Tags))
	for k := range el.Tags {
		kindHints = append(kindHints, k)
	}

	poi := model.POI{
		Key:       key,
		Source:    model.SourceOSM,
		Label:     label,
		Lat:       poiLat,
		Lng:       poiLng,
		KindHints: kindHints,
		RawTags:   tagsToAny(el.Tags),
	}
	if !poi.Valid() {
		return model.POI{}, false
	}
	return poi, true
}

func (o *OSM) centerOf(el overpassElement) (lat, lng float64, ok bool) {
	if el.Lat != 0 || el.Lon != 0 {
		return el.Lat, el.Lon, true
	}
	if el.Center != nil {
		return el.Center.Lat, el.Center.Lon, true
	}
	return 0, 0, false
}

// labelOf applies the fallback chain name -> name:he -> name:en ->
// name:<lang> -> derived from the historic/memorial/natural/place/tourism tag.
func (o *OSM) labelOf(el overpassElement, lang string) string {
	if v := el.Tags["name"]; v != "" {
		return v
	}
	if v := el.Tags["name:he"]; v != "" {
		return v
	}
	if v := el.Tags["name:en"]; v != "" {
		return v
	}
	if v := el.Tags[fmt.Sprintf("name:%s", lang)]; v != "" {
		return v
	}
	for _, k := range []string{"historic", "memorial", "natural", "place", "tourism"} {
		if v := el.Tags[k]; v != "" {
			return strings.ReplaceAll(v, "_", " ")
		}
	}
	return ""
}

func tagsToAny(tags map[string]string) map[string]any {
	out := make(map[string]any, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat,omitempty"`
	Lon    float64           `json:"lon,omitempty"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
