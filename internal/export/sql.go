// Package export turns resolved coordinates into SQL for the downstream
// destinations table, either as a script or applied directly.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/destination-cli/internal/db"
	"github.com/sells-group/destination-cli/internal/model"
)

// DefaultTable is the downstream table name.
const DefaultTable = "destinations"

// Options controls the generated statements.
type Options struct {
	Table string
	// RefreshLocation appends the PostGIS location refresh.
	RefreshLocation bool
}

func (o Options) table() (string, error) {
	if o.Table == "" {
		return DefaultTable, nil
	}
	if !db.ValidTable(o.Table) {
		return "", eris.Errorf("export: invalid table name %q", o.Table)
	}
	return o.Table, nil
}

// Stats counts what an export covered.
type Stats struct {
	Updated int
	Skipped int
}

// Row is one coordinate update.
type Row struct {
	Slug string
	Lat  float64
	Long float64
}

// Rows returns the updates for items with a slug and real coordinates.
func Rows(items []model.Destination) ([]Row, Stats) {
	var (
		rows  []Row
		stats Stats
	)
	for i := range items {
		d := &items[i]
		if d.Slug == "" || d.NeedsCoordinates() {
			stats.Skipped++
			continue
		}
		rows = append(rows, Row{Slug: d.Slug, Lat: d.Lat, Long: d.Long})
	}
	stats.Updated = len(rows)
	return rows, stats
}

// QuoteLiteral renders s as a SQL string literal with embedded quotes doubled.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

const rule = "-- ============================================\n"

// WriteSQL writes the update script for items to w.
func WriteSQL(w io.Writer, items []model.Destination, opts Options) (Stats, error) {
	table, err := opts.table()
	if err != nil {
		return Stats{}, err
	}

	rows, stats := Rows(items)
	bw := bufio.NewWriter(w)

	bw.WriteString(rule)
	bw.WriteString("-- UPDATE COORDINATES FOR EXISTING DESTINATIONS\n")
	bw.WriteString(rule)
	fmt.Fprintf(bw, "-- Sets lat/long on %s by slug\n", table)
	bw.WriteString(rule + "\n")

	for _, r := range rows {
		fmt.Fprintf(bw, "UPDATE %s SET lat = %s, long = %s WHERE slug = %s;\n",
			table, formatFloat(r.Lat), formatFloat(r.Long), QuoteLiteral(r.Slug))
	}

	bw.WriteString("\n" + rule)
	bw.WriteString("-- SUMMARY\n")
	bw.WriteString(rule)
	fmt.Fprintf(bw, "-- Updated: %d destinations with coordinates\n", stats.Updated)
	fmt.Fprintf(bw, "-- Skipped: %d destinations (no slug or no coordinates)\n", stats.Skipped)
	bw.WriteString(rule + "\n")

	bw.WriteString("-- Verify the updates\n")
	fmt.Fprintf(bw, "SELECT COUNT(*) AS total, COUNT(CASE WHEN lat != 0 THEN 1 END) AS with_coords FROM %s;\n", table)

	if opts.RefreshLocation {
		bw.WriteString("\n-- Update location column for PostGIS\n")
		bw.WriteString(locationSQL(table) + ";\n")
	}

	if err := bw.Flush(); err != nil {
		return stats, eris.Wrap(err, "export: write sql")
	}
	return stats, nil
}

func locationSQL(table string) string {
	return "UPDATE " + table + " SET location = ST_SetSRID(ST_MakePoint(long, lat), 4326) WHERE lat != 0 AND long != 0"
}
