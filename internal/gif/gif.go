// internal/gif/gif.go

package gif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://tenor.googleapis.com/v2"

var ErrMissingAPIKey = errors.New("GIF API key is not configured")

// Result is one searchable GIF: the animated URL plus a short description
// used as the attachment title.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Client queries the Tenor search API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// tenor wire shapes, trimmed to the fields we read.
type searchResponse struct {
	Results []struct {
		ContentDescription string `json:"content_description"`
		MediaFormats       struct {
			GIF struct {
				URL string `json:"url"`
			} `json:"gif"`
		} `json:"media_formats"`
	} `json:"results"`
}

// Search returns up to limit GIFs matching the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("key", c.apiKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("media_filter", "gif")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GIF search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GIF search returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode GIF search response: %w", err)
	}

	results := make([]Result, 0, len(sr.Results))
	for _, r := range sr.Results {
		if r.MediaFormats.GIF.URL == "" {
			continue
		}
		results = append(results, Result{
			URL:   r.MediaFormats.GIF.URL,
			Title: r.ContentDescription,
		})
	}
	return results, nil
}
