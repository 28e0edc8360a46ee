// Package places is a client for the Google Places API (New), used to pull
// commercial food businesses into the directory alongside the civic feeds.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask lists the place fields the ingestion pipeline consumes.
const fieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
	"places.primaryType,places.types,places.nationalPhoneNumber,places.websiteUri," +
	"places.regularOpeningHours,nextPageToken"

// detailFieldMask is the per-place variant of fieldMask (no places. prefix,
// no pagination token).
const detailFieldMask = "id,displayName,formattedAddress,location,primaryType,types," +
	"nationalPhoneNumber,websiteUri,regularOpeningHours"

// The API returns at most three pages of twenty results per query.
const maxPages = 3

// Client performs Places API operations.
type Client interface {
	TextSearch(ctx context.Context, params SearchParams) (*TextSearchResponse, error)
	SearchAll(ctx context.Context, params SearchParams) ([]map[string]any, error)
	Details(ctx context.Context, placeID string) (map[string]any, error)
}

// SearchParams describes one text search. The bias circle centres results on
// the service area without hard-filtering distant matches.
type SearchParams struct {
	Query      string
	BiasLat    float64
	BiasLon    float64
	BiasRadius float64 // metres
	PageSize   int
	PageToken  string
}

// TextSearchResponse is one page of Text Search results. Places are kept as
// raw maps; the normalization layer resolves fields by candidate keys.
type TextSearchResponse struct {
	Places        []map[string]any `json:"places"`
	NextPageToken string           `json:"nextPageToken"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery    string        `json:"textQuery"`
	PageSize     int           `json:"pageSize,omitempty"`
	PageToken    string        `json:"pageToken,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c *httpClient) TextSearch(ctx context.Context, params SearchParams) (*TextSearchResponse, error) {
	reqBody := textSearchRequest{
		TextQuery: params.Query,
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	}
	if params.BiasRadius > 0 {
		reqBody.LocationBias = &locationBias{
			Circle: circle{
				Center: latLng{Latitude: params.BiasLat, Longitude: params.BiasLon},
				Radius: params.BiasRadius,
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	return &result, nil
}

// Details fetches one place by id. Ingestion calls this once per unique
// search hit so the stored record reflects the place resource rather than a
// search result.
func (c *httpClient) Details(ctx context.Context, placeID string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+placeID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", detailFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var place map[string]any
	if err := json.Unmarshal(respBody, &place); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}
	return place, nil
}

// SearchAll runs a text search and follows pagination tokens until the
// results are exhausted or the API's page cap is reached.
func (c *httpClient) SearchAll(ctx context.Context, params SearchParams) ([]map[string]any, error) {
	var all []map[string]any

	for page := 0; page < maxPages; page++ {
		resp, err := c.TextSearch(ctx, params)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Places...)

		if resp.NextPageToken == "" {
			break
		}
		params.PageToken = resp.NextPageToken
	}

	return all, nil
}
