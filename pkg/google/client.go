// Package google is a small client for the Google Places API (New).
package google

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/sells-group/destination-cli/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

const serviceName = "google_places"

var placeFields = []string{
	"id",
	"displayName",
	"formattedAddress",
	"location",
	"rating",
	"userRatingCount",
	"priceLevel",
	"regularOpeningHours",
	"internationalPhoneNumber",
	"websiteUri",
	"googleMapsUri",
	"types",
	"editorialSummary",
}

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, query string) (*TextSearchResponse, error)
	PlaceDetails(ctx context.Context, placeID string) (*Place, error)
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API. Every field is optional.
type Place struct {
	ID                       string          `json:"id"`
	DisplayName              LocalizedText   `json:"displayName"`
	FormattedAddress         string          `json:"formattedAddress"`
	Location                 *LatLng         `json:"location,omitempty"`
	Rating                   float64         `json:"rating"`
	UserRatingCount          int             `json:"userRatingCount"`
	PriceLevel               string          `json:"priceLevel"`
	RegularOpeningHours      json.RawMessage `json:"regularOpeningHours,omitempty"`
	InternationalPhoneNumber string          `json:"internationalPhoneNumber"`
	WebsiteURI               string          `json:"websiteUri"`
	GoogleMapsURI            string          `json:"googleMapsUri"`
	Types                    []string        `json:"types"`
	EditorialSummary         LocalizedText   `json:"editorialSummary"`
}

// LocalizedText holds a localized string.
type LocalizedText struct {
	Text string `json:"text"`
}

// LatLng is a location in degrees.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PriceTier maps a Places price level to 1-4. Unknown or unspecified
// levels return 0.
func PriceTier(level string) int {
	switch strings.TrimPrefix(strings.ToUpper(level), "PRICE_LEVEL_") {
	case "FREE", "INEXPENSIVE":
		return 1
	case "MODERATE":
		return 2
	case "EXPENSIVE":
		return 3
	case "VERY_EXPENSIVE":
		return 4
	default:
		return 0
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL. Empty keeps the default.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter paces every request through l.
func WithLimiter(l *resilience.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *resilience.Limiter
}

// NewClient creates a Google Places API client.
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
	TextQuery string `json:"textQuery"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *httpClient) TextSearch(ctx context.Context, query string) (*TextSearchResponse, error) {
	body, err := json.Marshal(textSearchRequest{TextQuery: query})
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	mask := make([]string, len(placeFields))
	for i, f := range placeFields {
		mask[i] = "places." + f
	}

	var result TextSearchResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body), mask, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) PlaceDetails(ctx context.Context, placeID string) (*Place, error) {
	if placeID == "" {
		return nil, eris.New("google: empty place id")
	}

	var place Place
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/places/"+url.PathEscape(placeID), nil, placeFields, &place); err != nil {
		return nil, err
	}
	return &place, nil
}

func (c *httpClient) do(ctx context.Context, method, endpoint string, body io.Reader, mask []string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "google: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return eris.Wrap(err, "google: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", strings.Join(mask, ","))

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "google: unmarshal response")
	}
	return nil
}

func statusError(code int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	if resilience.IsQuotaHTTPStatus(code) || apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
		return resilience.NewQuotaError(serviceName, code, apiErr.Error.Message)
	}

	err := eris.Errorf("google: unexpected status %d: %s", code, string(body))
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	return err
}
