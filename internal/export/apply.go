package export

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/destination-cli/internal/db"
	"github.com/sells-group/destination-cli/internal/model"
)

const stageTable = "_tmp_destination_coords"

var stageColumns = []string{"slug", "lat", "long"}

// Apply writes coordinates straight into Postgres in one transaction: rows
// are COPYed into a temp table and joined into the target by slug. It
// returns the number of target rows updated.
func Apply(ctx context.Context, pool db.Pool, items []model.Destination, opts Options) (int64, error) {
	table, err := opts.table()
	if err != nil {
		return 0, err
	}
	rows, stats := Rows(items)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "export: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (slug TEXT PRIMARY KEY, lat DOUBLE PRECISION, long DOUBLE PRECISION) ON COMMIT DROP",
		pgx.Identifier{stageTable}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrap(err, "export: create stage table")
	}

	src := make([][]any, len(rows))
	for i, r := range rows {
		src[i] = []any{r.Slug, r.Lat, r.Long}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stageTable}, stageColumns, pgx.CopyFromRows(src)); err != nil {
		return 0, eris.Wrap(err, "export: copy coordinates")
	}

	target := db.SanitizeTable(table)
	updateSQL := fmt.Sprintf(
		"UPDATE %s AS d SET lat = s.lat, long = s.long FROM %s AS s WHERE d.slug = s.slug",
		target, pgx.Identifier{stageTable}.Sanitize(),
	)
	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "export: update %s", table)
	}

	if opts.RefreshLocation {
		if _, err := tx.Exec(ctx, locationSQL(target)); err != nil {
			return 0, eris.Wrap(err, "export: refresh location")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "export: commit tx")
	}

	zap.L().Info("export: applied coordinates",
		zap.String("table", table),
		zap.Int("rows", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int64("updated", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}
