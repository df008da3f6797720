package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tablewise/backend/internal/cache"
	"github.com/tablewise/backend/internal/models"
)

type fakeSource struct {
	mu      sync.Mutex
	fetches int
	byID    map[string]models.LocationMetrics
	errFor  map[string]error
	delay   time.Duration
}

func (f *fakeSource) LocationMetrics(ctx context.Context, id string, start, end time.Time) (models.LocationMetrics, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return models.LocationMetrics{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err, ok := f.errFor[id]; ok {
		return models.LocationMetrics{}, err
	}
	m, ok := f.byID[id]
	if !ok {
		return models.LocationMetrics{}, errors.New("unknown location")
	}
	return m, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func nycLocation() models.LocationMetrics {
	return models.LocationMetrics{
		ID:       "loc-nyc",
		Name:     "NYC Downtown",
		Timezone: "America/New_York",
		Reservations: []models.Reservation{
			{ID: "res-1", GuestID: "guest-1", Timestamp: "2025-02-10T23:30:00Z", PartySize: 4, Status: models.StatusCompleted, EstimatedRevenue: 200},
			{ID: "res-2", GuestID: "guest-2", Timestamp: "2025-02-11T04:30:00Z", PartySize: 2, Status: models.StatusCompleted, EstimatedRevenue: 150},
		},
	}
}

func laLocation() models.LocationMetrics {
	return models.LocationMetrics{
		ID:       "loc-la",
		Name:     "LA Waterfront",
		Timezone: "America/Los_Angeles",
		Reservations: []models.Reservation{
			{ID: "res-3", GuestID: "guest-3", Timestamp: "2025-02-11T04:00:00Z", PartySize: 6, Status: models.StatusCompleted, EstimatedRevenue: 350},
		},
	}
}

func testQuery() models.MetricsQuery {
	return models.MetricsQuery{
		LocationIDs: []string{"loc-nyc", "loc-la"},
		StartDate:   time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC),
	}
}

func TestAggregateAttributesLocalDates(t *testing.T) {
	src := &fakeSource{byID: map[string]models.LocationMetrics{
		"loc-nyc": nycLocation(),
		"loc-la":  laLocation(),
	}}
	a := &Analytics{Source: src, Logger: zerolog.Nop()}

	result, err := a.Aggregate(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var feb10, feb11 *models.DailyMetrics
	for i := range result.DailyData {
		switch result.DailyData[i].Date {
		case "2025-02-10":
			feb10 = &result.DailyData[i]
		case "2025-02-11":
			feb11 = &result.DailyData[i]
		}
	}
	// All three reservations are Feb 10 in their own local zones.
	if feb10 == nil || feb10.Reservations != 3 {
		t.Fatalf("expected 3 reservations on 2025-02-10, got %+v", feb10)
	}
	if feb11 != nil && feb11.Reservations != 0 {
		t.Fatalf("expected no reservations on 2025-02-11, got %+v", feb11)
	}
	if result.TotalReservations != 3 {
		t.Fatalf("expected total 3, got %d", result.TotalReservations)
	}

	covers := 0
	for _, d := range result.DailyData {
		covers += d.Covers
	}
	if covers != 12 {
		t.Fatalf("expected 12 covers across the series, got %d", covers)
	}
	if result.LocationNames["loc-nyc"] != "NYC Downtown" || result.LocationNames["loc-la"] != "LA Waterfront" {
		t.Fatalf("unexpected name map: %v", result.LocationNames)
	}
}

func TestAggregateSkipsInvalidTimestampsAndWarns(t *testing.T) {
	nyc := nycLocation()
	nyc.Reservations = append(nyc.Reservations, models.Reservation{
		ID: "res-bad", GuestID: "guest-x", Timestamp: "invalid-date", PartySize: 2, Status: models.StatusCompleted,
	})
	nyc.Reservations = append(nyc.Reservations, models.Reservation{
		ID: "res-4", GuestID: "guest-4", Timestamp: "2025-02-10T20:00:00Z", PartySize: 3, Status: models.StatusCompleted,
	})
	src := &fakeSource{byID: map[string]models.LocationMetrics{"loc-nyc": nyc}}
	a := &Analytics{Source: src, Logger: zerolog.Nop()}

	query := testQuery()
	query.LocationIDs = []string{"loc-nyc"}
	result, err := a.Aggregate(context.Background(), query)
	if err != nil {
		t.Fatalf("a bad record must not abort aggregation: %v", err)
	}
	if result.TotalReservations != 3 {
		t.Fatalf("expected 3 valid reservations counted, got %d", result.TotalReservations)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "res-bad") {
		t.Fatalf("expected one warning naming res-bad, got %v", result.Warnings)
	}
}

func TestAggregateFailsWholeQueryOnFetchError(t *testing.T) {
	src := &fakeSource{
		byID:   map[string]models.LocationMetrics{"loc-nyc": nycLocation()},
		errFor: map[string]error{"loc-la": errors.New("connection refused")},
	}
	a := &Analytics{Source: src, Logger: zerolog.Nop()}

	_, err := a.Aggregate(context.Background(), testQuery())
	if err == nil {
		t.Fatalf("expected whole-query failure")
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.LocationID != "loc-la" {
		t.Fatalf("error should name the failing location, got %s", fetchErr.LocationID)
	}
}

func TestAggregateCacheHitSkipsRefetch(t *testing.T) {
	src := &fakeSource{byID: map[string]models.LocationMetrics{
		"loc-nyc": nycLocation(),
		"loc-la":  laLocation(),
	}}
	a := &Analytics{Source: src, Cache: cache.NewMemory(time.Minute), Logger: zerolog.Nop()}

	first, err := a.Aggregate(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fetched := src.fetchCount()
	if fetched == 0 {
		t.Fatalf("expected fetches on cold cache")
	}

	// Same set in a different order must hit the same entry.
	query := testQuery()
	query.LocationIDs = []string{"loc-la", "loc-nyc"}
	second, err := a.Aggregate(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.fetchCount() != fetched {
		t.Fatalf("cache hit must not refetch: %d -> %d", fetched, src.fetchCount())
	}
	if second.TotalReservations != first.TotalReservations || len(second.DailyData) != len(first.DailyData) {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
}

func TestAggregateInvalidationForcesRecompute(t *testing.T) {
	src := &fakeSource{byID: map[string]models.LocationMetrics{
		"loc-nyc": nycLocation(),
		"loc-la":  laLocation(),
	}}
	resultCache := cache.NewMemory(time.Minute)
	a := &Analytics{Source: src, Cache: resultCache, Logger: zerolog.Nop()}

	if _, err := a.Aggregate(context.Background(), testQuery()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fetched := src.fetchCount()

	resultCache.Invalidate(context.Background())
	if _, err := a.Aggregate(context.Background(), testQuery()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.fetchCount() <= fetched {
		t.Fatalf("invalidation must force a refetch")
	}
}

func TestAggregateTimeout(t *testing.T) {
	src := &fakeSource{
		byID:  map[string]models.LocationMetrics{"loc-nyc": nycLocation()},
		delay: 200 * time.Millisecond,
	}
	a := &Analytics{Source: src, Logger: zerolog.Nop(), QueryTimeout: 10 * time.Millisecond}

	query := testQuery()
	query.LocationIDs = []string{"loc-nyc"}
	_, err := a.Aggregate(context.Background(), query)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAggregateComputesTrendsFromPreviousWindow(t *testing.T) {
	current := models.LocationMetrics{
		ID: "loc-nyc", Name: "NYC Downtown", Timezone: "America/New_York",
		Reservations: []models.Reservation{
			{ID: "c1", GuestID: "g1", Timestamp: "2025-02-10T18:00:00Z", PartySize: 2, Status: models.StatusNoShow},
			{ID: "c2", GuestID: "g2", Timestamp: "2025-02-10T19:00:00Z", PartySize: 2, Status: models.StatusCompleted},
		},
	}
	previous := models.LocationMetrics{
		ID: "loc-nyc", Name: "NYC Downtown", Timezone: "America/New_York",
		Reservations: []models.Reservation{
			{ID: "p1", GuestID: "g1", Timestamp: "2025-02-08T18:00:00Z", PartySize: 2, Status: models.StatusCompleted},
		},
	}

	query := models.MetricsQuery{
		LocationIDs: []string{"loc-nyc"},
		StartDate:   time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC),
	}
	src := &windowedSource{
		currentStart: query.StartDate,
		current:      current,
		previous:     previous,
	}
	a := &Analytics{Source: src, Logger: zerolog.Nop()}

	result, err := a.Aggregate(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Current no-show rate 0.5 vs previous 0: +50 percentage points.
	if !almostEqual(result.NoShowChange, 50) {
		t.Fatalf("expected no-show change 50, got %f", result.NoShowChange)
	}
	// 2 reservations vs 1: +100 percent.
	if !almostEqual(result.ReservationGrowth, 100) {
		t.Fatalf("expected growth 100, got %f", result.ReservationGrowth)
	}
}

func TestAggregateZeroLocations(t *testing.T) {
	src := &fakeSource{byID: map[string]models.LocationMetrics{}}
	a := &Analytics{Source: src, Logger: zerolog.Nop()}

	result, err := a.Aggregate(context.Background(), models.MetricsQuery{
		StartDate: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("zero locations must not error: %v", err)
	}
	if result.TotalReservations != 0 || result.AveragePartySize != 0 || result.NoShowRate != 0 {
		t.Fatalf("expected zero metrics, got %+v", result)
	}
	if len(result.DailyData) != 0 {
		t.Fatalf("expected empty series, got %v", result.DailyData)
	}
	if result.TopMigration.From != NoRoute {
		t.Fatalf("expected N/A route, got %+v", result.TopMigration)
	}
}

// windowedSource serves different payloads for the current and previous
// comparison windows.
type windowedSource struct {
	currentStart time.Time
	current      models.LocationMetrics
	previous     models.LocationMetrics
}

func (w *windowedSource) LocationMetrics(_ context.Context, _ string, start, _ time.Time) (models.LocationMetrics, error) {
	if start.Equal(w.currentStart) {
		return w.current, nil
	}
	return w.previous, nil
}
