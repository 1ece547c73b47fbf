// Package batch drives a work list through a handler in fixed-width
// batches with a delay between batches and periodic checkpoints.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

// Stop reasons reported in RunSummary.StopReason.
const (
	StopQuota       = "quota_exceeded"
	StopInterrupted = "interrupted"
)

// Handler resolves one item. Handle runs concurrently within a batch and
// must not mutate shared state; Apply runs serially after the batch has
// settled and is the only place items are mutated.
type Handler[T, R any] interface {
	Key(item T) string
	Handle(ctx context.Context, item T) (R, error)
	Apply(item *T, result R) model.Outcome
}

// Checkpointer persists progress.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Config sizes a run.
type Config struct {
	// Width is the number of items in flight per batch. Default: 1.
	Width int
	// Delay separates the end of one batch from the start of the next.
	Delay time.Duration
	// CheckpointEvery triggers a checkpoint after that many processed
	// items. Zero means only the final checkpoint.
	CheckpointEvery int
}

type settings struct {
	clock      resilience.Clock
	checkpoint Checkpointer
	progress   func(model.RunSummary)
	runID      string
}

// Option configures a Runner.
type Option func(*settings)

// WithClock replaces the clock used for inter-batch delays.
func WithClock(c resilience.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithCheckpointer sets the progress sink.
func WithCheckpointer(c Checkpointer) Option {
	return func(s *settings) {
		s.checkpoint = c
	}
}

// WithProgress registers a callback invoked after every batch.
func WithProgress(fn func(model.RunSummary)) Option {
	return func(s *settings) {
		s.progress = fn
	}
}

// WithRunID tags the summary and log lines.
func WithRunID(id string) Option {
	return func(s *settings) {
		s.runID = id
	}
}

// Runner executes a Handler over a work list.
type Runner[T, R any] struct {
	handler Handler[T, R]
	cfg     Config
	settings
}

// New creates a Runner.
func New[T, R any](h Handler[T, R], cfg Config, opts ...Option) *Runner[T, R] {
	if cfg.Width <= 0 {
		cfg.Width = 1
	}
	r := &Runner[T, R]{handler: h, cfg: cfg}
	r.clock = resilience.RealClock
	for _, o := range opts {
		o(&r.settings)
	}
	return r
}

type outcome[R any] struct {
	val R
	err error
}

// Run processes items[pending[i]] in order, batch by batch. Quota
// exhaustion and context cancellation end the run early with
// Partial set and a nil error; progress is always checkpointed. Only a
// persistence failure is returned as an error.
func (r *Runner[T, R]) Run(ctx context.Context, items []T, pending []int) (model.RunSummary, error) {
	summary := model.RunSummary{RunID: r.runID, Total: len(pending)}
	log := zap.L().With(zap.String("run_id", r.runID))

	sinceCheckpoint := 0
	batchNum := 0
	for start := 0; start < len(pending); start += r.cfg.Width {
		if start > 0 && r.cfg.Delay > 0 {
			if err := r.clock.Sleep(ctx, r.cfg.Delay); err != nil {
				r.stop(&summary, StopInterrupted)
				break
			}
		}
		if ctx.Err() != nil {
			r.stop(&summary, StopInterrupted)
			break
		}

		batchNum++
		end := min(start+r.cfg.Width, len(pending))
		batch := pending[start:end]

		results := r.handleBatch(ctx, items, batch)

		var (
			quota   error
			fatal   error
			applied int
		)
		for i, idx := range batch {
			res := results[i]
			key := r.handler.Key(items[idx])
			switch {
			case res.err == nil:
				o := r.handler.Apply(&items[idx], res.val)
				summary.Record(o)
				if o == model.OutcomeFailed {
					summary.Failures = append(summary.Failures, model.Failure{Key: key})
				}
				applied++
			case resilience.IsQuota(res.err):
				if quota == nil {
					quota = res.err
				}
			case resilience.IsPersistence(res.err):
				if fatal == nil {
					fatal = res.err
				}
			case errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded):
				// Left unresolved for the next run.
			default:
				summary.Record(model.OutcomeFailed)
				summary.Failures = append(summary.Failures, model.Failure{
					Key:       key,
					Error:     res.err.Error(),
					ErrorType: resilience.ClassifyError(res.err),
				})
				applied++
				log.Debug("batch: item failed", zap.String("identity", key), zap.Error(res.err))
			}
		}
		sinceCheckpoint += applied

		log.Debug("batch: settled",
			zap.Int("batch", batchNum),
			zap.Int("size", len(batch)),
			zap.Int("processed", summary.Processed),
		)
		if r.progress != nil {
			r.progress(summary)
		}

		if fatal != nil {
			if err := r.checkpointNow(ctx); err != nil {
				log.Error("batch: checkpoint after persistence failure", zap.Error(err))
			}
			return summary, eris.Wrap(fatal, "batch: persistence failure")
		}

		if quota != nil {
			log.Warn("batch: quota exceeded, stopping", zap.Error(quota))
			r.stop(&summary, StopQuota)
			break
		}

		if r.cfg.CheckpointEvery > 0 && sinceCheckpoint >= r.cfg.CheckpointEvery {
			if err := r.checkpointNow(ctx); err != nil {
				return summary, err
			}
			sinceCheckpoint = 0
		}
	}

	if ctx.Err() != nil && summary.Remaining() > 0 {
		r.stop(&summary, StopInterrupted)
	}
	if err := r.checkpointNow(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}

// handleBatch issues every item of the batch and waits for all of them.
// A failing item never cancels its siblings.
func (r *Runner[T, R]) handleBatch(ctx context.Context, items []T, batch []int) []outcome[R] {
	results := make([]outcome[R], len(batch))
	var g errgroup.Group
	g.SetLimit(r.cfg.Width)
	for i, idx := range batch {
		item := items[idx]
		g.Go(func() error {
			val, err := r.handler.Handle(ctx, item)
			results[i] = outcome[R]{val: val, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner[T, R]) checkpointNow(ctx context.Context) error {
	if r.checkpoint == nil {
		return nil
	}
	return r.checkpoint.Checkpoint(ctx)
}

func (r *Runner[T, R]) stop(s *model.RunSummary, reason string) {
	s.Partial = true
	if s.StopReason == "" {
		s.StopReason = reason
	}
}
