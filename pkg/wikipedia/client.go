// Package wikipedia provides a client for the English Wikipedia MediaWiki API.
package wikipedia

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Wikipedia API operations used for enrichment.
type Client interface {
	// Search runs a full-text search and returns up to limit results.
	// An empty slice means the query matched nothing.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	// PageInfo resolves a title (following redirects) to its canonical URL,
	// a short plain-text extract, and a thumbnail URL. The second return is
	// false when no such page exists.
	PageInfo(ctx context.Context, title string) (Page, bool, error)
	// WikibaseItem returns the Wikidata item ID linked to a title, or false
	// when the page has no linked item.
	WikibaseItem(ctx context.Context, title string) (string, bool, error)
}

// SearchResult is one full-text search hit.
type SearchResult struct {
	Title  string `json:"title"`
	PageID int64  `json:"pageid"`
}

// Page holds the resolved page details used for enrichment.
type Page struct {
	Title     string
	URL       string
	Extract   string
	Thumbnail string
}

// Option configures the Wikipedia client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a new Wikipedia API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://en.wikipedia.org/w/api.php",
		userAgent: "reactorsync/1.0 (https://github.com/reactormap/reactorsync)",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("wikipedia: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Query struct {
			Search []SearchResult `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "wikipedia: unmarshal search response")
	}
	return result.Query.Search, nil
}

// pageJSON is the per-page object shared by the query-prop responses.
// Missing pages carry "missing" and a negative page ID.
type pageJSON struct {
	PageID    int64  `json:"pageid"`
	Title     string `json:"title"`
	Missing   any    `json:"missing,omitempty"`
	FullURL   string `json:"fullurl"`
	Extract   string `json:"extract"`
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	PageProps struct {
		WikibaseItem string `json:"wikibase_item"`
	} `json:"pageprops"`
}

func firstPage(body []byte) (*pageJSON, error) {
	var result struct {
		Query struct {
			Pages map[string]pageJSON `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "wikipedia: unmarshal query response")
	}
	for key, p := range result.Query.Pages {
		if key == "-1" || p.Missing != nil {
			return nil, nil
		}
		return &p, nil
	}
	return nil, nil
}

func (c *httpClient) PageInfo(ctx context.Context, title string) (Page, bool, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("redirects", "1")
	params.Set("prop", "info|extracts|pageimages")
	params.Set("inprop", "url")
	params.Set("exsentences", "2")
	params.Set("explaintext", "1")
	params.Set("piprop", "thumbnail")
	params.Set("pithumbsize", "300")

	body, err := c.get(ctx, params)
	if err != nil {
		return Page{}, false, err
	}

	p, err := firstPage(body)
	if err != nil {
		return Page{}, false, err
	}
	if p == nil {
		return Page{}, false, nil
	}
	return Page{
		Title:     p.Title,
		URL:       p.FullURL,
		Extract:   p.Extract,
		Thumbnail: p.Thumbnail.Source,
	}, true, nil
}

func (c *httpClient) WikibaseItem(ctx context.Context, title string) (string, bool, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("redirects", "1")
	params.Set("prop", "pageprops")
	params.Set("ppprop", "wikibase_item")

	body, err := c.get(ctx, params)
	if err != nil {
		return "", false, err
	}

	p, err := firstPage(body)
	if err != nil {
		return "", false, err
	}
	if p == nil || p.PageProps.WikibaseItem == "" {
		return "", false, nil
	}
	return p.PageProps.WikibaseItem, true, nil
}
