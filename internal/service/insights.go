package service

import (
	"fmt"
	"time"

	"github.com/tablewise/backend/internal/models"
)

// NoRoute is the sentinel reported when no qualifying migration exists.
const NoRoute = "N/A"

// defaultPeakHour is reported when there are no reservations to tally.
const defaultPeakHour = 19

// AveragePartySize is the mean party size over all reservations across all
// locations. Zero reservations yield 0, not NaN.
func AveragePartySize(metrics []models.LocationMetrics) float64 {
	total := 0
	count := 0
	for _, loc := range metrics {
		for _, res := range loc.Reservations {
			total += res.PartySize
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

// NoShowRate is the fraction of reservations with status no_show across all
// locations, in [0,1]. Zero reservations yield 0.
func NoShowRate(metrics []models.LocationMetrics) float64 {
	noShows := 0
	total := 0
	for _, loc := range metrics {
		for _, res := range loc.Reservations {
			total++
			if res.Status == models.StatusNoShow {
				noShows++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(noShows) / float64(total)
}

// PeakHour tallies each reservation's local hour of day in its owning
// location's timezone and returns the busiest hour as a 12-hour label.
// Ties resolve to the lowest hour index. Records with unparseable timestamps
// are ignored here; bucketing already reported them.
func PeakHour(metrics []models.LocationMetrics, zones map[string]*time.Location) string {
	var counts [24]int
	total := 0
	for _, loc := range metrics {
		zone := zones[loc.ID]
		if zone == nil {
			zone = time.UTC
		}
		for _, res := range loc.Reservations {
			ts, err := time.Parse(time.RFC3339, res.Timestamp)
			if err != nil {
				continue
			}
			counts[ts.In(zone).Hour()]++
			total++
		}
	}
	if total == 0 {
		return formatHourLabel(defaultPeakHour)
	}
	peak := 0
	for h := 1; h < 24; h++ {
		if counts[h] > counts[peak] {
			peak = h
		}
	}
	return formatHourLabel(peak)
}

func formatHourLabel(hour int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:00 %s", h, suffix)
}

// CrossLocationGuests counts guests holding reservations at more than one
// distinct location within the window.
func CrossLocationGuests(metrics []models.LocationMetrics) int {
	guestLocations := make(map[string]map[string]struct{})
	for _, loc := range metrics {
		for _, res := range loc.Reservations {
			set, ok := guestLocations[res.GuestID]
			if !ok {
				set = make(map[string]struct{})
				guestLocations[res.GuestID] = set
			}
			set[loc.ID] = struct{}{}
		}
	}
	count := 0
	for _, set := range guestLocations {
		if len(set) > 1 {
			count++
		}
	}
	return count
}

// TopMigrationRoute tallies ordered (previous location -> current location)
// pairs over reservations that carry a previous-location reference different
// from their owning location, and returns the most frequent pair with ids
// resolved to display names. Ties resolve to the first-seen pair so the
// result is stable regardless of tally order. No qualifying reservations
// yield the N/A sentinel.
func TopMigrationRoute(metrics []models.LocationMetrics) models.MigrationRoute {
	type pair struct{ from, to string }
	counts := make(map[pair]int)
	var order []pair
	for _, loc := range metrics {
		for _, res := range loc.Reservations {
			if res.PreviousLocationID == "" || res.PreviousLocationID == loc.ID {
				continue
			}
			p := pair{from: res.PreviousLocationID, to: loc.ID}
			if _, seen := counts[p]; !seen {
				order = append(order, p)
			}
			counts[p]++
		}
	}
	if len(order) == 0 {
		return models.MigrationRoute{From: NoRoute, To: NoRoute}
	}

	top := order[0]
	for _, p := range order[1:] {
		if counts[p] > counts[top] {
			top = p
		}
	}

	names := LocationNames(metrics)
	return models.MigrationRoute{
		From: displayName(names, top.from),
		To:   displayName(names, top.to),
	}
}

// LocationNames maps each queried location id to its display name.
func LocationNames(metrics []models.LocationMetrics) map[string]string {
	names := make(map[string]string, len(metrics))
	for _, loc := range metrics {
		names[loc.ID] = loc.Name
	}
	return names
}

func displayName(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}
