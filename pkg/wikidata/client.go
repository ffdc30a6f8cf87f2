// Package wikidata provides a client for the Wikidata entity API and helpers
// for Wikimedia Commons image URLs.
package wikidata

import (
	"context"
	"crypto/md5" //nolint:gosec // Commons shards file paths by MD5, not for security
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ClaimKind distinguishes how a claim's value should be interpreted.
type ClaimKind string

const (
	// ClaimEntity is a reference to another Wikidata item (a QID).
	ClaimEntity ClaimKind = "entity"
	// ClaimString is a plain string value.
	ClaimString ClaimKind = "string"
	// ClaimCommonsMedia is a Wikimedia Commons file name.
	ClaimCommonsMedia ClaimKind = "commons"
)

// Claim is the first-ranked value of one property on an entity.
type Claim struct {
	Kind  ClaimKind
	Value string
}

// Client defines the Wikidata API operations used for enrichment.
type Client interface {
	// Claims fetches an entity and returns one claim per requested property.
	// Properties absent from the entity are absent from the map; an unknown
	// QID yields an empty map.
	Claims(ctx context.Context, qid string, properties []string) (map[string]Claim, error)
	// Label returns the English label of an entity, or false when the entity
	// or its English label does not exist.
	Label(ctx context.Context, qid string) (string, bool, error)
}

// Option configures the Wikidata client.
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

// NewClient creates a new Wikidata API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://www.wikidata.org/w/api.php",
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
		return nil, eris.Wrap(err, "wikidata: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("wikidata: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// snakJSON is the wbgetentities mainsnak shape. Only the value kinds the
// enrichment stage consumes are decoded.
type snakJSON struct {
	Datatype  string `json:"datatype"`
	Datavalue struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"datavalue"`
}

type claimJSON struct {
	Mainsnak snakJSON `json:"mainsnak"`
}

func (c *httpClient) Claims(ctx context.Context, qid string, properties []string) (map[string]Claim, error) {
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", qid)
	params.Set("props", "claims")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Entities map[string]struct {
			Missing any                    `json:"missing,omitempty"`
			Claims  map[string][]claimJSON `json:"claims"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "wikidata: unmarshal entity response")
	}

	claims := map[string]Claim{}
	entity, ok := result.Entities[qid]
	if !ok || entity.Missing != nil {
		return claims, nil
	}

	for _, prop := range properties {
		list := entity.Claims[prop]
		if len(list) == 0 {
			continue
		}
		claim, ok := decodeSnak(list[0].Mainsnak)
		if ok {
			claims[prop] = claim
		}
	}
	return claims, nil
}

func decodeSnak(snak snakJSON) (Claim, bool) {
	switch snak.Datavalue.Type {
	case "wikibase-entityid":
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(snak.Datavalue.Value, &v); err != nil || v.ID == "" {
			return Claim{}, false
		}
		return Claim{Kind: ClaimEntity, Value: v.ID}, true
	case "string":
		var v string
		if err := json.Unmarshal(snak.Datavalue.Value, &v); err != nil || v == "" {
			return Claim{}, false
		}
		kind := ClaimString
		if snak.Datatype == "commonsMedia" {
			kind = ClaimCommonsMedia
		}
		return Claim{Kind: kind, Value: v}, true
	default:
		return Claim{}, false
	}
}

func (c *httpClient) Label(ctx context.Context, qid string) (string, bool, error) {
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", qid)
	params.Set("props", "labels")
	params.Set("languages", "en")

	body, err := c.get(ctx, params)
	if err != nil {
		return "", false, err
	}

	var result struct {
		Entities map[string]struct {
			Missing any `json:"missing,omitempty"`
			Labels  map[string]struct {
				Value string `json:"value"`
			} `json:"labels"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", false, eris.Wrap(err, "wikidata: unmarshal label response")
	}

	entity, ok := result.Entities[qid]
	if !ok || entity.Missing != nil {
		return "", false, nil
	}
	label, ok := entity.Labels["en"]
	if !ok || label.Value == "" {
		return "", false, nil
	}
	return label.Value, true, nil
}

// CommonsThumbURL builds the thumbnail URL for a Commons file name using the
// MD5-sharded upload path.
func CommonsThumbURL(filename string, width int) string {
	name := strings.ReplaceAll(filename, " ", "_")
	sum := md5.Sum([]byte(name)) //nolint:gosec
	hash := hex.EncodeToString(sum[:])
	escaped := url.PathEscape(name)
	return fmt.Sprintf(
		"https://upload.wikimedia.org/wikipedia/commons/thumb/%s/%s/%s/%dpx-%s",
		hash[:1], hash[:2], escaped, width, escaped,
	)
}
