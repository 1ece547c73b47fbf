package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

// Flusher is anything with pending state to persist.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Checkpointer persists the in-memory work list and flushes the caches.
// Each write is retried once; a second failure is a PersistError.
type Checkpointer struct {
	list   *WorkList
	items  []model.Destination
	caches []Flusher
	retry  resilience.RetryConfig
	saves  int
}

// NewCheckpointer checkpoints items (mutated in place by the job) to list.
func NewCheckpointer(list *WorkList, items []model.Destination, caches ...Flusher) *Checkpointer {
	return &Checkpointer{
		list:   list,
		items:  items,
		caches: caches,
		retry:  resilience.PersistRetryConfig(),
	}
}

// WithRetry overrides the retry policy.
func (c *Checkpointer) WithRetry(cfg resilience.RetryConfig) *Checkpointer {
	c.retry = cfg
	return c
}

// Checkpoint flushes every cache and then rewrites the work list.
func (c *Checkpointer) Checkpoint(ctx context.Context) error {
	// Persistence must complete even when the run is being cancelled.
	ctx = context.WithoutCancel(ctx)

	for _, f := range c.caches {
		if err := resilience.Do(ctx, c.retry, f.Flush); err != nil {
			return resilience.NewPersistError("flush cache", err)
		}
	}

	if c.list != nil {
		err := resilience.Do(ctx, c.retry, func(_ context.Context) error {
			return c.list.Save(c.items)
		})
		if err != nil {
			return resilience.NewPersistError("write work list", err)
		}
		c.saves++
	}

	zap.L().Debug("checkpoint written", zap.Int("saves", c.saves))
	return nil
}

// Saves returns how many work-list writes have succeeded.
func (c *Checkpointer) Saves() int { return c.saves }
