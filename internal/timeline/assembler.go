// Package timeline merges per-record event lists into one chronologically
// ordered event stream with a fully deterministic ordering, so equal-time
// events never produce non-reproducible output.
package timeline

import (
	"sort"

	"github.com/warp-metrics/curvetrace/internal/models"
)

// kindRank fixes the declared priority of event kinds at equal times:
// constraint_violation sorts before curvature_peak.
func kindRank(k models.EventKind) int {
	if k == models.EventConstraintViolation {
		return 0
	}
	return 1
}

// Assemble flattens the event lists and sorts by time ascending. Ties are
// broken by originating-record input order, then by kind priority
// (constraint_violation before curvature_peak). The result depends only on
// the multiset of events, not on how they were grouped into lists.
//
// The returned Timeline is final; build a new one to reflect new input.
func Assemble(eventLists [][]models.Event) models.Timeline {
	var all models.Timeline
	for _, list := range eventLists {
		all = append(all, list...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.SourceIndex != b.SourceIndex {
			return a.SourceIndex < b.SourceIndex
		}
		return kindRank(a.Kind) < kindRank(b.Kind)
	})

	return all
}
