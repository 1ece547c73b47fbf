// Package geocode resolves a destination's (name, city) identity to
// coordinates by walking an ordered list of resolvers.
package geocode

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

// Result is a resolved coordinate pair plus where it came from. It is also
// the cache value.
type Result struct {
	Lat         float64 `json:"lat"`
	Long        float64 `json:"long"`
	Source      string  `json:"source,omitempty"`
	Quality     string  `json:"quality,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Coordinates returns the pair as a model value.
func (r Result) Coordinates() model.Coordinates {
	return model.Coordinates{Lat: r.Lat, Long: r.Long}
}

// Resolver is one strategy in the chain. A nil Result with a nil error is
// a miss. Errors other than quota errors are also treated as misses by the
// chain; a QuotaError aborts it.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, id model.Identity) (*Result, error)
}

// Quality labels.
const (
	QualityPrecise     = "precise"
	QualityCity        = "city"
	QualityCityTable   = "city_table"
	QualityRooftop     = "rooftop"
	QualityRange       = "range"
	QualityCentroid    = "centroid"
	QualityApproximate = "approximate"
)

// cityOnly re-queries its inner resolver with the place name dropped.
type cityOnly struct {
	inner Resolver
}

// CityOnly wraps r so it is queried with the city alone.
func CityOnly(r Resolver) Resolver {
	return cityOnly{inner: r}
}

func (c cityOnly) Name() string { return c.inner.Name() + "_city" }

func (c cityOnly) Resolve(ctx context.Context, id model.Identity) (*Result, error) {
	if strings.TrimSpace(id.City) == "" {
		return nil, nil
	}
	res, err := c.inner.Resolve(ctx, model.Identity{City: id.City})
	if err != nil || res == nil {
		return res, err
	}
	out := *res
	out.Quality = QualityCity
	return &out, nil
}

// formatQuery builds the free-text query sent to a search provider:
// "name, city", or just whichever part is present.
func formatQuery(id model.Identity) string {
	name := strings.TrimSpace(id.Name)
	city := strings.TrimSpace(id.City)
	switch {
	case name == "":
		return city
	case city == "":
		return name
	default:
		return name + ", " + city
	}
}

// retrying re-issues transient failures of its inner resolver.
type retrying struct {
	inner Resolver
	cfg   resilience.RetryConfig
}

// WithRetry wraps r so transient errors (timeouts, 5xx) are retried with
// backoff. Quota errors and misses are returned immediately.
func WithRetry(r Resolver, cfg resilience.RetryConfig) Resolver {
	return retrying{inner: r, cfg: cfg}
}

func (r retrying) Name() string { return r.inner.Name() }

func (r retrying) Resolve(ctx context.Context, id model.Identity) (*Result, error) {
	cfg := r.cfg
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Debug("geocode: retrying",
			zap.String("provider", r.inner.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		return r.inner.Resolve(ctx, id)
	})
}
