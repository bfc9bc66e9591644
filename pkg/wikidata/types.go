package wikidata

// Article represents a Wikidata entity with geodata and metadata, as
// returned by the tile SPARQL query (C4/C6a): the candidate-discovery and
// fact-extraction paths both consume this shape.
type Article struct {
	QID         string            `json:"qid"`
	Title       string            `json:"title"`
	TitleEn     string            `json:"title_en,omitempty"`
	TitleUser   string            `json:"title_user,omitempty"`
	LocalTitles map[string]string `json:"local_titles,omitempty"` // lang -> sitelink title
	Lat         float64           `json:"lat"`
	Lon         float64           `json:"lon"`
	Dist        float64           `json:"dist_m"`
	Label       string            `json:"label,omitempty"`
	Instances   []string          `json:"instances"`
	Sitelinks   int               `json:"sitelinks"`
}

// HexTile represents a single H3 grid cell.
type HexTile struct {
	Index string
}

// Key returns the cache key for this tile.
// Format: wd_h3_{index}
func (h HexTile) Key() string {
	return "wd_h3_" + h.Index
}

// EntityMetadata contains raw Wikidata entity data (Labels and Claims).
type EntityMetadata struct {
	Labels map[string]string
	Claims map[string][]string
}
