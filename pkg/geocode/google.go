package geocode

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleProvider queries the Google Geocoding API.
type GoogleProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *resilience.Limiter
	timeout    time.Duration
	requests   atomic.Int64
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleBaseURL points the provider at a different endpoint.
func WithGoogleBaseURL(u string) GoogleOption {
	return func(p *GoogleProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithGoogleHTTPClient sets the HTTP client.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.httpClient = c }
}

// WithGoogleLimiter sets the shared limiter.
func WithGoogleLimiter(l *resilience.Limiter) GoogleOption {
	return func(p *GoogleProvider) { p.limiter = l }
}

// WithGoogleTimeout bounds a single request.
func WithGoogleTimeout(d time.Duration) GoogleOption {
	return func(p *GoogleProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewGoogleProvider creates a provider for apiKey.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		httpClient: http.DefaultClient,
		baseURL:    googleGeocodeURL,
		apiKey:     apiKey,
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Resolver.
func (p *GoogleProvider) Name() string { return "google_geocode" }

// Requests returns the number of HTTP requests issued.
func (p *GoogleProvider) Requests() int64 { return p.requests.Load() }

// Resolve implements Resolver.
func (p *GoogleProvider) Resolve(ctx context.Context, id model.Identity) (*Result, error) {
	if p.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	q := formatQuery(id)
	if q == "" {
		return nil, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := url.Values{
		"address": {q},
		"key":     {p.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	p.requests.Add(1)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsQuotaHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewQuotaError(p.Name(), resp.StatusCode, "")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, resilience.NewQuotaError(p.Name(), 0, googleResp.Status)
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", googleResp.Status, googleResp.ErrorMessage)
	}
	if len(googleResp.Results) == 0 {
		return nil, nil
	}

	result := googleResp.Results[0]
	return &Result{
		Lat:         result.Geometry.Location.Lat,
		Long:        result.Geometry.Location.Lng,
		Source:      p.Name(),
		Quality:     googleLocationTypeToQuality(result.Geometry.LocationType),
		DisplayName: result.FormattedAddress,
	}, nil
}

// googleLocationTypeToQuality maps Google's location_type to a quality label.
func googleLocationTypeToQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return QualityRooftop
	case "RANGE_INTERPOLATED":
		return QualityRange
	case "GEOMETRIC_CENTER":
		return QualityCentroid
	default:
		return QualityApproximate
	}
}
