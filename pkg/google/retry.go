package google

import (
	"context"

	"github.com/sells-group/destination-cli/internal/resilience"
)

type retryClient struct {
	inner Client
	cfg   resilience.RetryConfig
}

// WithRetry wraps c so transient failures are retried with backoff.
// Quota errors are never retried.
func WithRetry(c Client, cfg resilience.RetryConfig) Client {
	return &retryClient{inner: c, cfg: cfg}
}

func (r *retryClient) TextSearch(ctx context.Context, query string) (*TextSearchResponse, error) {
	return resilience.DoVal(ctx, r.cfg, func(ctx context.Context) (*TextSearchResponse, error) {
		return r.inner.TextSearch(ctx, query)
	})
}

func (r *retryClient) PlaceDetails(ctx context.Context, placeID string) (*Place, error) {
	return resilience.DoVal(ctx, r.cfg, func(ctx context.Context) (*Place, error) {
		return r.inner.PlaceDetails(ctx, placeID)
	})
}
