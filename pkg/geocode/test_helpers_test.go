package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

// newTestLimiter creates a limiter that never waits.
func newTestLimiter() *resilience.Limiter {
	return resilience.NewLimiter(0, nil)
}

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if strings.HasPrefix(origURL, t.targetPrefix) {
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(t.testServer + origURL[len(t.targetPrefix):])
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// stubResolver answers from a fixed function and records its queries.
type stubResolver struct {
	name string
	fn   func(id model.Identity) (*Result, error)

	mu      sync.Mutex
	queries []model.Identity
}

func (s *stubResolver) Name() string { return s.name }

func (s *stubResolver) Resolve(_ context.Context, id model.Identity) (*Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, id)
	s.mu.Unlock()
	return s.fn(id)
}

func (s *stubResolver) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func missing(name string) *stubResolver {
	return &stubResolver{name: name, fn: func(model.Identity) (*Result, error) { return nil, nil }}
}

func fixed(name string, lat, long float64) *stubResolver {
	return &stubResolver{name: name, fn: func(model.Identity) (*Result, error) {
		return &Result{Lat: lat, Long: long}, nil
	}}
}

// memCache is an in-memory Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]Result
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]Result)}
}

func (m *memCache) Get(_ context.Context, key string) (Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	return r, ok, nil
}

func (m *memCache) Put(_ context.Context, key string, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = r
	m.puts++
	return nil
}
