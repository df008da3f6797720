package service

import (
	"sort"

	"github.com/tablewise/backend/internal/models"
)

// MergeDaily combines per-location daily buckets into one series by summing
// counts for identical date keys. Fields are summed, never reassigned: an
// earlier version of this rollup let the last location's record overwrite
// prior totals for a shared date, silently dropping counts.
//
// The merged bucket keeps the timezone of the first location (in slice order)
// that contributed the date. That annotation is display metadata; the counts
// never depend on it, so the merge stays commutative and associative over
// location order.
func MergeDaily(perLocation []map[string]models.DailyMetrics) map[string]models.DailyMetrics {
	merged := make(map[string]models.DailyMetrics)
	for _, daily := range perLocation {
		for key, d := range daily {
			m, ok := merged[key]
			if !ok {
				merged[key] = d
				continue
			}
			m.Reservations += d.Reservations
			m.WalkIns += d.WalkIns
			m.Covers += d.Covers
			m.Revenue += d.Revenue
			merged[key] = m
		}
	}
	return merged
}

// SortedDaily flattens a merged map into a series ordered by date ascending.
// The YYYY-MM-DD key sorts lexicographically in date order.
func SortedDaily(merged map[string]models.DailyMetrics) []models.DailyMetrics {
	out := make([]models.DailyMetrics, 0, len(merged))
	for _, d := range merged {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
