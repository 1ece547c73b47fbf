package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/batch"
	"github.com/sells-group/destination-cli/internal/config"
	"github.com/sells-group/destination-cli/internal/cost"
	"github.com/sells-group/destination-cli/internal/enrich"
	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/pipeline"
	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/internal/store"
	"github.com/sells-group/destination-cli/pkg/anthropic"
	"github.com/sells-group/destination-cli/pkg/google"
)

type enrichOptions struct {
	runFlags
	noTags bool
}

var enrichFlags enrichOptions

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Attach place details, tags and a category to destinations",
	Long:  "Looks up each destination in the Places API, generates tags and a short tagline, and merges the result into the work list without erasing existing fields.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := runEnrich(ctx, cfg, workListPath(cmd), enrichFlags, progressWriter())
		printSummary(cmd.OutOrStdout(), "enrich", summary)
		return err
	},
}

func init() {
	addRunFlags(enrichCmd, &enrichFlags.runFlags)
	enrichCmd.Flags().BoolVar(&enrichFlags.noTags, "no-tags", false, "skip tag generation")
	rootCmd.AddCommand(enrichCmd)
}

func newPlacesClient(c config.PlacesConfig, retry resilience.RetryConfig) google.Client {
	client := google.NewClient(c.Key,
		google.WithBaseURL(c.BaseURL),
		google.WithLimiter(resilience.FromDelayMs(c.MinDelayMs, nil)),
		google.WithHTTPClient(&http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}),
	)
	return google.WithRetry(client, retry)
}

func newTagger(c config.AnthropicConfig) enrich.Tagger {
	var reqOpts []option.RequestOption
	if c.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.BaseURL))
	}
	client := anthropic.NewClient(c.Key, reqOpts...)
	return enrich.NewAnthropicTagger(client, c.Model, c.MaxTokens, resilience.FromDelayMs(c.MinDelayMs, nil))
}

// runEnrich drives the enrich job over the work list at listPath.
func runEnrich(ctx context.Context, c *config.Config, listPath string, opts enrichOptions, progressOut io.Writer) (model.RunSummary, error) {
	if c.Places.Key == "" {
		return model.RunSummary{}, eris.New("enrich: places.key is required")
	}

	kv, err := openCache(ctx, c, enrichNamespace)
	if err != nil {
		return model.RunSummary{}, eris.Wrap(err, "enrich: open cache")
	}
	defer func() { _ = kv.Close() }()

	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	enrichOpts := []enrich.Option{enrich.WithCache(store.NewTyped[enrich.Record](kv))}
	switch {
	case opts.noTags:
	case c.Anthropic.Key == "":
		log.Warn("enrich: anthropic.key not set, tagging disabled")
	default:
		enrichOpts = append(enrichOpts, enrich.WithTagger(newTagger(c.Anthropic)))
	}
	enricher := enrich.NewEnricher(newPlacesClient(c.Places, c.Retry.Resilience()), enrichOpts...)

	persist := resilience.PersistRetryConfig()
	prog := newProgress("enrich", progressOut)
	summary, err := pipeline.Execute(ctx, pipeline.Run{
		Name:      "enrich",
		List:      store.NewWorkList(listPath),
		Selection: opts.selection(),
		Needs:     pipeline.NeedsEnrichment,
		Batch:     opts.batchConfig(c.Batch),
		Caches:    []store.Flusher{kv},
		Retry:     &persist,
		Options:   []batch.Option{batch.WithRunID(runID), batch.WithProgress(prog.update)},
	}, pipeline.NewEnrichJob(enricher, nil))
	prog.finish()

	stats := enricher.Stats()
	calc := cost.NewCalculator(c.Pricing)
	est := cost.Estimate{
		Places: calc.Places(stats.TextSearches, stats.Details),
		Claude: calc.Claude(c.Anthropic.Model, stats.Usage),
	}
	log.Info("enrich: done",
		zap.String("summary", summary.String()),
		zap.Int64("text_searches", stats.TextSearches),
		zap.Int64("details", stats.Details),
		zap.Int64("tag_calls", stats.TagCalls),
		zap.String("cost", est.String()),
	)
	return summary, err
}
