package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/batch"
	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/internal/store"
)

// Run describes one job over the work list.
type Run struct {
	Name      string
	List      *store.WorkList
	Selection Selection
	Needs     func(*model.Destination) bool
	Batch     batch.Config
	Caches    []store.Flusher
	Retry     *resilience.RetryConfig
	Options   []batch.Option
}

// Execute loads the work list, selects pending items, and drives them
// through h with checkpoints covering the work list and every cache.
func Execute[R any](ctx context.Context, run Run, h batch.Handler[model.Destination, R]) (model.RunSummary, error) {
	items, err := run.List.Load()
	if err != nil {
		return model.RunSummary{}, eris.Wrapf(err, "pipeline: load %s", run.List.Path())
	}

	pending := Select(items, run.Selection, run.Needs)
	log := zap.L().With(zap.String("job", run.Name))
	log.Info("pipeline: starting",
		zap.Int("items", len(items)),
		zap.Int("pending", len(pending)),
		zap.Int("width", run.Batch.Width),
	)
	if len(pending) == 0 {
		return model.RunSummary{}, nil
	}

	cp := store.NewCheckpointer(run.List, items, run.Caches...)
	if run.Retry != nil {
		cp = cp.WithRetry(*run.Retry)
	}

	opts := append([]batch.Option{batch.WithCheckpointer(cp)}, run.Options...)
	runner := batch.New(h, run.Batch, opts...)
	summary, err := runner.Run(ctx, items, pending)
	if err != nil {
		return summary, err
	}

	log.Info("pipeline: finished",
		zap.String("summary", summary.String()),
		zap.Int("remaining", summary.Remaining()),
		zap.String("stop_reason", summary.StopReason),
	)
	return summary, nil
}
