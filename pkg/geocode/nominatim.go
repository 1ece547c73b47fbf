package geocode

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

const (
	nominatimSearchURL = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent   = "destination-cli/1.0"
)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimProvider queries the OpenStreetMap Nominatim search API.
type NominatimProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *resilience.Limiter
	timeout    time.Duration
	requests   atomic.Int64
}

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimBaseURL points the provider at a different search endpoint.
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithNominatimHTTPClient sets the HTTP client.
func WithNominatimHTTPClient(c *http.Client) NominatimOption {
	return func(p *NominatimProvider) { p.httpClient = c }
}

// WithNominatimUserAgent sets the User-Agent header Nominatim requires.
func WithNominatimUserAgent(ua string) NominatimOption {
	return func(p *NominatimProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithNominatimLimiter shares a limiter across every caller of the provider.
func WithNominatimLimiter(l *resilience.Limiter) NominatimOption {
	return func(p *NominatimProvider) { p.limiter = l }
}

// WithNominatimTimeout bounds a single request.
func WithNominatimTimeout(d time.Duration) NominatimOption {
	return func(p *NominatimProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewNominatimProvider creates a provider with a 1 req/s limiter unless
// one is supplied.
func NewNominatimProvider(opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		httpClient: http.DefaultClient,
		baseURL:    nominatimSearchURL,
		userAgent:  defaultUserAgent,
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.limiter == nil {
		p.limiter = resilience.NewLimiter(time.Second, nil)
	}
	return p
}

// Name implements Resolver.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Requests returns the number of HTTP requests issued.
func (p *NominatimProvider) Requests() int64 { return p.requests.Load() }

// Resolve implements Resolver.
func (p *NominatimProvider) Resolve(ctx context.Context, id model.Identity) (*Result, error) {
	q := formatQuery(id)
	if q == "" {
		return nil, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := url.Values{
		"q":      {q},
		"format": {"json"},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	p.requests.Add(1)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resilience.IsQuotaHTTPStatus(resp.StatusCode):
		return nil, resilience.NewQuotaError(p.Name(), resp.StatusCode, "")
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		zap.L().Debug("nominatim: no match", zap.String("query", q))
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim lat %q", places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim lon %q", places[0].Lon)
	}

	return &Result{
		Lat:         lat,
		Long:        lon,
		Source:      p.Name(),
		Quality:     QualityPrecise,
		DisplayName: places[0].DisplayName,
	}, nil
}
