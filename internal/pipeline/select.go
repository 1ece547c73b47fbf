// Package pipeline binds the geocode and enrich jobs to the batch runner
// and the work list.
package pipeline

import (
	"github.com/sells-group/destination-cli/internal/model"
)

// Selection scopes a run.
type Selection struct {
	// Limit caps the number of selected items. Zero means no cap.
	Limit int
	// All reprocesses items that are already resolved.
	All bool
	// Slug restricts the run to one destination, resolved or not.
	Slug string
}

// Select returns the indices of the items to process, in list order.
func Select(items []model.Destination, sel Selection, needs func(*model.Destination) bool) []int {
	var out []int
	for i := range items {
		d := &items[i]
		switch {
		case sel.Slug != "":
			if d.Slug != sel.Slug {
				continue
			}
		case !sel.All && needs != nil && !needs(d):
			continue
		}
		out = append(out, i)
		if sel.Limit > 0 && len(out) == sel.Limit {
			break
		}
	}
	return out
}
