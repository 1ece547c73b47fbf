package pipeline

import (
	"context"

	"github.com/sells-group/destination-cli/internal/enrich"
	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

// EnrichJob attaches place details and tags.
type EnrichJob struct {
	enricher *enrich.Enricher
	clock    resilience.Clock
}

// NewEnrichJob creates an EnrichJob. clock stamps last_enriched_at; nil
// means the real clock.
func NewEnrichJob(e *enrich.Enricher, clock resilience.Clock) *EnrichJob {
	if clock == nil {
		clock = resilience.RealClock
	}
	return &EnrichJob{enricher: e, clock: clock}
}

// Key returns the cache identity of d.
func (j *EnrichJob) Key(d model.Destination) string {
	return d.Identity().Key()
}

// Handle runs the enricher.
func (j *EnrichJob) Handle(ctx context.Context, d model.Destination) (*enrich.Result, error) {
	return j.enricher.Enrich(ctx, d)
}

// Apply merges the record into d. A record with neither a place nor tags
// leaves d untouched so the next run retries it.
func (j *EnrichJob) Apply(d *model.Destination, res *enrich.Result) model.Outcome {
	if res == nil || !res.Record.Found() {
		return model.OutcomeFailed
	}
	res.Record.Apply(d, j.clock.Now())
	if res.Cached {
		return model.OutcomeCached
	}
	return model.OutcomeResolved
}

// NeedsEnrichment is the default selection filter for enrich runs.
func NeedsEnrichment(d *model.Destination) bool {
	return d.NeedsEnrichment()
}
