package model

import "time"

// Article represents a fetched encyclopedia article (C6b). The store's
// ArticleStore persists it keyed by UUID; the fact-extraction path does
// not read or write that store.
type Article struct {
	UUID         string            `json:"uuid"`
	Title        string            `json:"title"`
	URL          string            `json:"url"`
	Names        map[string]string `json:"names"`   // lang -> localized title
	Text         string            `json:"text"`
	Lengths      map[string]int    `json:"lengths"` // lang -> article length in chars
	ThumbnailURL string            `json:"thumbnail_url"`
	CreatedAt    time.Time         `json:"created_at"`
}
