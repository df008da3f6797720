package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tablewise/backend/internal/cache"
	"github.com/tablewise/backend/internal/models"
	"github.com/tablewise/backend/internal/source"
)

// Analytics aggregates per-location reservation metrics into one
// cross-location rollup. Fetches run concurrently, one per queried location;
// if any single fetch fails the whole query fails, since a silently omitted
// location would make every total misleadingly low. Bucketing, merging and
// the derived insights are pure computations over the fully fetched set.
type Analytics struct {
	Source       source.Source
	Cache        cache.Cache
	Logger       zerolog.Logger
	QueryTimeout time.Duration
}

// Aggregate serves a metrics query, returning a cached result when one is
// still valid for the same location set and window. Records with unparseable
// timestamps are dropped from every metric and reported via Warnings.
func (a *Analytics) Aggregate(ctx context.Context, query models.MetricsQuery) (models.AggregatedMetrics, error) {
	key := cache.Key(query.LocationIDs, query.StartDate, query.EndDate)
	if a.Cache != nil {
		if cached, ok := a.Cache.Get(ctx, key); ok {
			a.Logger.Debug().Str("key", key).Msg("analytics cache hit")
			return cached, nil
		}
	}

	if a.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.QueryTimeout)
		defer cancel()
	}

	metrics, err := a.fetchAll(ctx, query.LocationIDs, query.StartDate, query.EndDate)
	if err != nil {
		return models.AggregatedMetrics{}, err
	}

	result, err := a.compute(metrics)
	if err != nil {
		return models.AggregatedMetrics{}, err
	}

	a.applyTrends(ctx, query, &result)

	for _, w := range result.Warnings {
		a.Logger.Warn().Msg(w)
	}

	if a.Cache != nil {
		a.Cache.Set(ctx, key, result)
	}
	return result, nil
}

// fetchAll retrieves every queried location concurrently, preserving query
// order in the returned slice. The first failure cancels the remaining
// fetches and fails the call.
func (a *Analytics) fetchAll(ctx context.Context, ids []string, start, end time.Time) ([]models.LocationMetrics, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]models.LocationMetrics, len(ids))
	errCh := make(chan error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			m, err := a.Source.LocationMetrics(ctx, id, start, end)
			if err != nil {
				errCh <- &FetchError{LocationID: id, Err: err}
				cancel()
				return
			}
			results[i] = m
		}(i, id)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Analytics) compute(metrics []models.LocationMetrics) (models.AggregatedMetrics, error) {
	zones, err := resolveZones(metrics)
	if err != nil {
		return models.AggregatedMetrics{}, err
	}

	clean, warnings := dropInvalidTimestamps(metrics)

	perLocation := make([]map[string]models.DailyMetrics, 0, len(clean))
	total := 0
	for _, loc := range clean {
		daily, _ := BucketDaily(loc, zones[loc.ID])
		perLocation = append(perLocation, daily)
		total += len(loc.Reservations)
	}

	return models.AggregatedMetrics{
		TotalReservations:   total,
		AveragePartySize:    AveragePartySize(clean),
		PeakHour:            PeakHour(clean, zones),
		NoShowRate:          NoShowRate(clean),
		DailyData:           SortedDaily(MergeDaily(perLocation)),
		CrossLocationGuests: CrossLocationGuests(clean),
		TopMigration:        TopMigrationRoute(clean),
		LocationNames:       LocationNames(metrics),
		Warnings:            warnings,
	}, nil
}

// applyTrends compares the current window against the immediately preceding
// window of equal length. The comparison is auxiliary: if the previous window
// cannot be fetched the trends stay zero and a warning is recorded instead of
// failing the whole query.
func (a *Analytics) applyTrends(ctx context.Context, query models.MetricsQuery, result *models.AggregatedMetrics) {
	window := query.EndDate.Sub(query.StartDate)
	if window <= 0 {
		return
	}
	prevStart := query.StartDate.Add(-window)
	previous, err := a.fetchAll(ctx, query.LocationIDs, prevStart, query.StartDate)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("previous period fetch failed, trends zeroed")
		result.Warnings = append(result.Warnings, "previous period unavailable, trend values zeroed")
		return
	}

	prevClean, _ := dropInvalidTimestamps(previous)
	prevTotal := 0
	for _, loc := range prevClean {
		prevTotal += len(loc.Reservations)
	}
	result.NoShowChange = NoShowChange(result.NoShowRate, NoShowRate(prevClean))
	result.ReservationGrowth = ReservationGrowth(result.TotalReservations, prevTotal)
}

// resolveZones loads each location's IANA zone once. An unresolvable zone
// fails the query: every bucket derived from it would land on wrong dates.
func resolveZones(metrics []models.LocationMetrics) (map[string]*time.Location, error) {
	zones := make(map[string]*time.Location, len(metrics))
	for _, loc := range metrics {
		zone, err := time.LoadLocation(loc.Timezone)
		if err != nil {
			return nil, fmt.Errorf("location %s: invalid timezone %q: %w", loc.ID, loc.Timezone, err)
		}
		zones[loc.ID] = zone
	}
	return zones, nil
}

// dropInvalidTimestamps removes records whose timestamp does not parse as an
// RFC3339 instant, one warning per record. A skipped record contributes to no
// bucket and no derived insight; the remaining records aggregate unchanged.
func dropInvalidTimestamps(metrics []models.LocationMetrics) ([]models.LocationMetrics, []string) {
	var warnings []string
	out := make([]models.LocationMetrics, 0, len(metrics))
	for _, loc := range metrics {
		clean := loc
		clean.Reservations = make([]models.Reservation, 0, len(loc.Reservations))
		for _, res := range loc.Reservations {
			if _, err := time.Parse(time.RFC3339, res.Timestamp); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid timestamp for reservation %s: %q", res.ID, res.Timestamp))
				continue
			}
			clean.Reservations = append(clean.Reservations, res)
		}
		clean.WalkIns = make([]models.WalkIn, 0, len(loc.WalkIns))
		for _, w := range loc.WalkIns {
			if _, err := time.Parse(time.RFC3339, w.Timestamp); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid timestamp for walk-in %s: %q", w.ID, w.Timestamp))
				continue
			}
			clean.WalkIns = append(clean.WalkIns, w)
		}
		out = append(out, clean)
	}
	return out, warnings
}
