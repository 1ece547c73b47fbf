package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/config"
	"github.com/sells-group/destination-cli/internal/db"
	"github.com/sells-group/destination-cli/internal/export"
	"github.com/sells-group/destination-cli/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export resolved data for the downstream database",
}

var (
	exportOut   string
	exportApply bool
)

var exportSQLCmd = &cobra.Command{
	Use:   "sql",
	Short: "Write coordinate UPDATE statements, or apply them directly",
	Long:  "Generates one UPDATE per destination with real coordinates, keyed by slug. With --apply the updates run in a single transaction against export.database_url instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := workListPath(cmd)
		if exportApply {
			return runExportApply(ctx, cfg, path, cmd.OutOrStdout())
		}
		return runExportSQL(cfg, path, exportOut, cmd.OutOrStdout())
	},
}

func init() {
	exportSQLCmd.Flags().StringVarP(&exportOut, "out", "o", "update_coordinates.sql", "output file (- for stdout)")
	exportSQLCmd.Flags().BoolVar(&exportApply, "apply", false, "apply the updates to export.database_url instead of writing a file")
	exportCmd.AddCommand(exportSQLCmd)
	rootCmd.AddCommand(exportCmd)
}

func exportOptions(c config.ExportConfig) export.Options {
	return export.Options{Table: c.Table, RefreshLocation: c.RefreshLocation}
}

// runExportSQL renders the script for the work list at listPath to out, or
// to stdout when out is "-".
func runExportSQL(c *config.Config, listPath, out string, stdout io.Writer) error {
	items, err := store.NewWorkList(listPath).Load()
	if err != nil {
		return eris.Wrapf(err, "export: load %s", listPath)
	}

	var buf bytes.Buffer
	stats, err := export.WriteSQL(&buf, items, exportOptions(c.Export))
	if err != nil {
		return err
	}

	if out == "-" {
		_, err = stdout.Write(buf.Bytes())
		return err
	}
	if err := store.WriteFileAtomic(out, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", out)
	}

	zap.L().Info("export: wrote sql",
		zap.String("path", out),
		zap.Int("updates", stats.Updated),
		zap.Int("skipped", stats.Skipped),
	)
	fmt.Fprintf(stdout, "wrote %d update(s) to %s (%d skipped)\n", stats.Updated, out, stats.Skipped)
	return nil
}

func runExportApply(ctx context.Context, c *config.Config, listPath string, stdout io.Writer) error {
	if c.Export.DatabaseURL == "" {
		return eris.New("export: export.database_url is required with --apply")
	}
	items, err := store.NewWorkList(listPath).Load()
	if err != nil {
		return eris.Wrapf(err, "export: load %s", listPath)
	}

	pool, err := db.Connect(ctx, c.Export.DatabaseURL, &db.PoolConfig{MaxConns: c.Export.MaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := export.Apply(ctx, pool, items, exportOptions(c.Export))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "updated %d row(s) in %s\n", n, c.Export.Table)
	return nil
}
