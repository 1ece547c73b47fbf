package geocode

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

// Cache stores resolved results by identity key. *store.Typed[Result]
// satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Put(ctx context.Context, key string, r Result) error
}

// Resolution is what the chain produced for one identity. A nil Result
// means every resolver missed and the caller should apply the sentinel.
type Resolution struct {
	Result   *Result
	Cached   bool
	Resolver string
}

// Chain tries resolvers in order until one yields non-zero coordinates.
// Results are cached, misses are not, so a later run retries them.
type Chain struct {
	resolvers []Resolver
	cache     Cache
	breakers  *resilience.ServiceBreakers
	group     singleflight.Group
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithCache sets the result cache.
func WithCache(c Cache) ChainOption {
	return func(ch *Chain) { ch.cache = c }
}

// WithBreakers wraps every resolver call in a per-resolver circuit breaker.
func WithBreakers(sb *resilience.ServiceBreakers) ChainOption {
	return func(ch *Chain) { ch.breakers = sb }
}

// NewChain creates a Chain over resolvers in the given order.
func NewChain(resolvers []Resolver, opts ...ChainOption) *Chain {
	c := &Chain{resolvers: resolvers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolvers returns the names of the resolvers in order.
func (c *Chain) Resolvers() []string {
	names := make([]string, len(c.resolvers))
	for i, r := range c.resolvers {
		names[i] = r.Name()
	}
	return names
}

// Resolve returns the coordinates for id. The only errors returned are
// quota stops, persistence failures and context cancellation; every other
// resolver failure is logged and treated as a miss.
func (c *Chain) Resolve(ctx context.Context, id model.Identity) (Resolution, error) {
	key := id.Key()

	if hit, ok := c.fromCache(ctx, key); ok {
		return hit, nil
	}

	// Workers that race on the same identity share one walk of the chain.
	v, err, _ := c.group.Do(key, func() (any, error) {
		if hit, ok := c.fromCache(ctx, key); ok {
			return hit, nil
		}
		return c.walk(ctx, id, key)
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}

func (c *Chain) fromCache(ctx context.Context, key string) (Resolution, bool) {
	if c.cache == nil {
		return Resolution{}, false
	}
	r, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("geocode: cache read failed", zap.String("key", key), zap.Error(err))
		return Resolution{}, false
	}
	if !ok || r.Coordinates().IsZero() {
		return Resolution{}, false
	}
	return Resolution{Result: &r, Cached: true, Resolver: "cache"}, true
}

func (c *Chain) walk(ctx context.Context, id model.Identity, key string) (Resolution, error) {
	for _, r := range c.resolvers {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}

		cb := c.breakers.Get(r.Name())
		if err := cb.Allow(); err != nil {
			zap.L().Debug("geocode: resolver skipped, circuit open", zap.String("resolver", r.Name()))
			continue
		}

		res, err := r.Resolve(ctx, id)
		cb.Record(err)
		if err != nil {
			if resilience.IsQuota(err) {
				return Resolution{}, err
			}
			if ctx.Err() != nil {
				return Resolution{}, ctx.Err()
			}
			zap.L().Debug("geocode: resolver error, trying next",
				zap.String("resolver", r.Name()),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		if res == nil || res.Coordinates().IsZero() {
			continue
		}

		if res.Source == "" {
			res.Source = r.Name()
		}
		if c.cache != nil {
			if err := c.cache.Put(ctx, key, *res); err != nil {
				return Resolution{}, resilience.NewPersistError("write geocode cache", err)
			}
		}
		return Resolution{Result: res, Resolver: r.Name()}, nil
	}

	return Resolution{}, nil
}
