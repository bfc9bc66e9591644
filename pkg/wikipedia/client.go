// Package wikipedia fetches encyclopedia article text for the C6b
// fact extractor: plain-text extracts by default, falling back to
// parsed HTML when a page is only served that way.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"wayfarer/pkg/request"
)

// Client handles Wikipedia API interactions.
type Client struct {
	request     *request.Client
	APIEndpoint string // Optional override for testing
}

// NewClient creates a new Wikipedia client.
func NewClient(r *request.Client) *Client {
	return &Client{request: r}
}

func (c *Client) endpoint(lang string) string {
	if c.APIEndpoint != "" {
		return c.APIEndpoint
	}
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
}

// GetArticleContent fetches the plain-text extract for a single article.
func (c *Client) GetArticleContent(ctx context.Context, title, lang string) (string, error) {
	u, _ := url.Parse(c.endpoint(lang))
	q := u.Query()
	q.Add("action", "query")
	q.Add("prop", "extracts")
	q.Add("explaintext", "1")
	q.Add("titles", title)
	q.Add("format", "json")
	q.Add("redirects", "1")
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), "")
	if err != nil {
		return "", err
	}

	var apiResp struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode json: %w", err)
	}

	for _, page := range apiResp.Query.Pages {
		return page.Extract, nil
	}

	return "", fmt.Errorf("article not found: %s", title)
}

// GetArticleHTML fetches the parsed HTML content for a single article,
// used when a page has no plain-text extract available.
func (c *Client) GetArticleHTML(ctx context.Context, title, lang string) (string, error) {
	u, _ := url.Parse(c.endpoint(lang))
	q := u.Query()
	q.Add("action", "parse")
	q.Add("prop", "text")
	q.Add("page", title)
	q.Add("format", "json")
	q.Add("redirects", "1")
	q.Add("disableeditsection", "1")
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), "")
	if err != nil {
		return "", err
	}

	var apiResp struct {
		Parse struct {
			Text struct {
				Html string `json:"*"`
			} `json:"text"`
		} `json:"parse"`
		Error struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode json: %w", err)
	}

	if apiResp.Error.Code != "" {
		return "", fmt.Errorf("wikipedia api error: %s - %s", apiResp.Error.Code, apiResp.Error.Info)
	}

	return apiResp.Parse.Text.Html, nil
}
