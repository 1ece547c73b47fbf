package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/destination-cli/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the geocode and enrich caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of entries in each cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheStats(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(ctx context.Context, c *config.Config, w io.Writer) error {
	fmt.Fprintf(w, "driver: %s  dir: %s\n", c.Cache.Driver, c.Cache.Dir)
	for _, ns := range cacheNamespaces {
		kv, err := openCache(ctx, c, ns)
		if err != nil {
			return eris.Wrapf(err, "cache: open %s", ns)
		}
		n, err := kv.Len(ctx)
		_ = kv.Close()
		if err != nil {
			return eris.Wrapf(err, "cache: count %s", ns)
		}
		fmt.Fprintf(w, "%-14s %d entries\n", ns, n)
	}
	return nil
}
