package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/batch"
	"github.com/sells-group/destination-cli/internal/config"
	"github.com/sells-group/destination-cli/internal/cost"
	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/pipeline"
	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/internal/store"
	"github.com/sells-group/destination-cli/pkg/geocode"
)

// runFlags are the selection and batch overrides shared by geocode and enrich.
type runFlags struct {
	limit           int
	all             bool
	slug            string
	width           int
	delayMs         int
	checkpointEvery int
}

func (f runFlags) selection() pipeline.Selection {
	return pipeline.Selection{Limit: f.limit, All: f.all, Slug: f.slug}
}

// batchConfig overlays non-zero flag values onto the configured batch size.
func (f runFlags) batchConfig(c config.BatchConfig) batch.Config {
	if f.width > 0 {
		c.Width = f.width
	}
	if f.delayMs >= 0 {
		c.DelayMs = f.delayMs
	}
	if f.checkpointEvery > 0 {
		c.CheckpointEvery = f.checkpointEvery
	}
	return batch.Config{
		Width:           c.Width,
		Delay:           time.Duration(c.DelayMs) * time.Millisecond,
		CheckpointEvery: c.CheckpointEvery,
	}
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().IntVar(&f.limit, "limit", 0, "process at most N pending items (0 = all)")
	cmd.Flags().BoolVar(&f.all, "all", false, "reprocess items that are already done")
	cmd.Flags().StringVar(&f.slug, "slug", "", "process only the item with this slug")
	cmd.Flags().IntVar(&f.width, "width", 0, "concurrent items per batch (overrides batch.width)")
	cmd.Flags().IntVar(&f.delayMs, "delay-ms", -1, "pause between batches in ms (overrides batch.delay_ms)")
	cmd.Flags().IntVar(&f.checkpointEvery, "checkpoint-every", 0, "checkpoint after every N items (overrides batch.checkpoint_every)")
}

type geocodeOptions struct {
	runFlags
	provider string
}

var geocodeFlags geocodeOptions

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve coordinates for destinations still at 0,0",
	Long:  "Walks the work list in batches, resolving each pending destination through the cache, the precise geocoder, the city fallback table and a city-only query. Progress is checkpointed so an interrupted run resumes where it stopped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := runGeocode(ctx, cfg, workListPath(cmd), geocodeFlags, progressWriter())
		printSummary(cmd.OutOrStdout(), "geocode", summary)
		return err
	},
}

func init() {
	addRunFlags(geocodeCmd, &geocodeFlags.runFlags)
	geocodeCmd.Flags().StringVar(&geocodeFlags.provider, "provider", "", "precise geocoder: nominatim or google (overrides geocode.provider)")
	rootCmd.AddCommand(geocodeCmd)
}

// preciseResolver is a provider that counts its billable requests.
type preciseResolver interface {
	geocode.Resolver
	Requests() int64
}

func newPreciseResolver(c config.GeocodeConfig) (preciseResolver, error) {
	limiter := resilience.FromDelayMs(c.MinDelayMs, nil)
	timeout := time.Duration(c.TimeoutSecs) * time.Second

	switch c.Provider {
	case "nominatim", "":
		return geocode.NewNominatimProvider(
			geocode.WithNominatimBaseURL(c.BaseURL),
			geocode.WithNominatimUserAgent(c.UserAgent),
			geocode.WithNominatimLimiter(limiter),
			geocode.WithNominatimTimeout(timeout),
		), nil
	case "google":
		if c.GoogleKey == "" {
			return nil, eris.New("geocode: geocode.google_key is required for the google provider")
		}
		return geocode.NewGoogleProvider(c.GoogleKey,
			geocode.WithGoogleBaseURL(c.BaseURL),
			geocode.WithGoogleLimiter(limiter),
			geocode.WithGoogleTimeout(timeout),
		), nil
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", c.Provider)
	}
}

func newFallbackTable(path string) (*geocode.FallbackTable, error) {
	if path == "" {
		return geocode.DefaultFallbackTable(nil), nil
	}
	overrides, err := geocode.LoadFallbackFile(path)
	if err != nil {
		return nil, err
	}
	return geocode.DefaultFallbackTable(overrides), nil
}

// runGeocode wires the resolver chain and drives the geocode job over the
// work list at listPath. A nil progress writer logs progress instead of
// drawing a bar.
func runGeocode(ctx context.Context, c *config.Config, listPath string, opts geocodeOptions, progressOut io.Writer) (model.RunSummary, error) {
	gc := c.Geocode
	if opts.provider != "" {
		gc.Provider = opts.provider
	}

	precise, err := newPreciseResolver(gc)
	if err != nil {
		return model.RunSummary{}, err
	}
	table, err := newFallbackTable(gc.FallbackFile)
	if err != nil {
		return model.RunSummary{}, err
	}

	kv, err := openCache(ctx, c, geocodeNamespace)
	if err != nil {
		return model.RunSummary{}, eris.Wrap(err, "geocode: open cache")
	}
	defer func() { _ = kv.Close() }()

	retry := c.Retry.Resilience()
	resolvers := []geocode.Resolver{geocode.WithRetry(precise, retry), table}
	if gc.CityOnly {
		resolvers = append(resolvers, geocode.WithRetry(geocode.CityOnly(precise), retry))
	}
	chain := geocode.NewChain(resolvers,
		geocode.WithCache(store.NewTyped[geocode.Result](kv)),
		geocode.WithBreakers(resilience.NewServiceBreakers(
			resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs),
		)),
	)

	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("geocode: resolver chain", zap.Strings("resolvers", chain.Resolvers()))

	persist := resilience.PersistRetryConfig()
	prog := newProgress("geocode", progressOut)
	summary, err := pipeline.Execute(ctx, pipeline.Run{
		Name:      "geocode",
		List:      store.NewWorkList(listPath),
		Selection: opts.selection(),
		Needs:     pipeline.NeedsCoordinates,
		Batch:     opts.batchConfig(c.Batch),
		Caches:    []store.Flusher{kv},
		Retry:     &persist,
		Options:   []batch.Option{batch.WithRunID(runID), batch.WithProgress(prog.update)},
	}, pipeline.NewGeocodeJob(chain))
	prog.finish()

	calc := cost.NewCalculator(c.Pricing)
	est := cost.Estimate{Geocode: calc.Geocode(precise.Name(), precise.Requests())}
	log.Info("geocode: done",
		zap.String("summary", summary.String()),
		zap.Int64("requests", precise.Requests()),
		zap.String("cost", est.String()),
	)
	return summary, err
}

// printSummary writes the final report.
func printSummary(w io.Writer, job string, s model.RunSummary) {
	fmt.Fprintf(w, "%s %s\n", job, s)
	if s.Partial {
		fmt.Fprintf(w, "  stopped: %s, %d item(s) remaining; rerun to resume\n", s.StopReason, s.Remaining())
	}
	for _, f := range s.Failures {
		if f.Error == "" {
			fmt.Fprintf(w, "  failed: %s\n", f.Key)
			continue
		}
		fmt.Fprintf(w, "  failed: %s (%s: %s)\n", f.Key, f.ErrorType, f.Error)
	}
}
