package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "destination-cli",
	Short: "Resumable geocoding and enrichment for destination lists",
	Long:  "Resolves coordinates and place details for a destination work list with cached, rate-limited provider chains, checkpointing progress so interrupted or quota-limited runs resume where they stopped.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("work-list", "", "work list JSON file (overrides files.work_list)")
}

// workListPath returns the --work-list flag or the configured path.
func workListPath(cmd *cobra.Command) string {
	if f := cmd.Flag("work-list"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return cfg.Files.WorkList
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
