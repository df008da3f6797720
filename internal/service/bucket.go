package service

import (
	"fmt"
	"time"

	"github.com/tablewise/backend/internal/models"
)

const dateLayout = "2006-01-02"

// BucketDaily folds one location's reservations and walk-ins into civil-date
// buckets using the location's own timezone. A reservation at 23:30 local in
// UTC-5 is 04:30 UTC the next day; it belongs to the local calendar day, not
// the UTC one, or two adjacent accounting days end up with wrong totals.
//
// Records whose timestamp does not parse are skipped and reported in the
// returned warnings; they are never defaulted to "now" or the epoch.
func BucketDaily(loc models.LocationMetrics, zone *time.Location) (map[string]models.DailyMetrics, []string) {
	daily := make(map[string]models.DailyMetrics)
	var warnings []string

	for _, res := range loc.Reservations {
		ts, err := time.Parse(time.RFC3339, res.Timestamp)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid timestamp for reservation %s: %q", res.ID, res.Timestamp))
			continue
		}
		key := ts.In(zone).Format(dateLayout)
		d, ok := daily[key]
		if !ok {
			d = models.DailyMetrics{Date: key, Timezone: loc.Timezone}
		}
		d.Reservations++
		d.Covers += res.PartySize
		d.Revenue += res.EstimatedRevenue
		daily[key] = d
	}

	for _, w := range loc.WalkIns {
		ts, err := time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid timestamp for walk-in %s: %q", w.ID, w.Timestamp))
			continue
		}
		key := ts.In(zone).Format(dateLayout)
		d, ok := daily[key]
		if !ok {
			d = models.DailyMetrics{Date: key, Timezone: loc.Timezone}
		}
		d.WalkIns++
		d.Covers += w.PartySize
		daily[key] = d
	}

	return daily, warnings
}
