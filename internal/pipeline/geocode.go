package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/pkg/geocode"
)

// GeocodeJob resolves coordinates through a resolver chain.
type GeocodeJob struct {
	chain *geocode.Chain
}

// NewGeocodeJob creates a GeocodeJob.
func NewGeocodeJob(chain *geocode.Chain) *GeocodeJob {
	return &GeocodeJob{chain: chain}
}

// Key returns the cache identity of d.
func (j *GeocodeJob) Key(d model.Destination) string {
	return d.Identity().Key()
}

// Handle runs the chain. It never touches d.
func (j *GeocodeJob) Handle(ctx context.Context, d model.Destination) (geocode.Resolution, error) {
	if d.Name == "" && d.City == "" {
		return geocode.Resolution{}, nil
	}
	return j.chain.Resolve(ctx, d.Identity())
}

// Apply writes the coordinates. When every resolver missed, an unresolved
// item gets the sentinel and a resolved one keeps its existing pair.
func (j *GeocodeJob) Apply(d *model.Destination, res geocode.Resolution) model.Outcome {
	if res.Result == nil {
		if d.NeedsCoordinates() {
			d.SetCoordinates(model.Coordinates{})
		}
		zap.L().Info("geocode: no coordinates found",
			zap.String("identity", d.Identity().Key()),
			zap.Stringer("kept", d.Coordinates()),
		)
		return model.OutcomeFailed
	}

	d.SetCoordinates(res.Result.Coordinates())
	if res.Cached {
		return model.OutcomeCached
	}
	zap.L().Debug("geocode: resolved",
		zap.String("identity", d.Identity().Key()),
		zap.String("resolver", res.Resolver),
		zap.String("quality", res.Result.Quality),
	)
	return model.OutcomeResolved
}

// NeedsCoordinates is the default selection filter for geocode runs.
func NeedsCoordinates(d *model.Destination) bool {
	return d.NeedsCoordinates()
}
