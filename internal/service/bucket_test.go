package service

import (
	"strings"
	"testing"
	"time"

	"github.com/tablewise/backend/internal/models"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	zone, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load zone %s: %v", name, err)
	}
	return zone
}

func TestBucketDailyUsesLocalCivilDate(t *testing.T) {
	loc := models.LocationMetrics{
		ID:       "loc-nyc",
		Name:     "NYC Downtown",
		Timezone: "America/New_York",
		Reservations: []models.Reservation{
			// 18:30 EST on Feb 10
			{ID: "res-1", GuestID: "g1", Timestamp: "2025-02-10T23:30:00Z", PartySize: 4, Status: models.StatusCompleted, EstimatedRevenue: 200},
			// 04:30 UTC on Feb 11 is 23:30 EST on Feb 10: must land on Feb 10
			{ID: "res-2", GuestID: "g2", Timestamp: "2025-02-11T04:30:00Z", PartySize: 2, Status: models.StatusCompleted, EstimatedRevenue: 150},
		},
	}

	daily, warnings := BucketDaily(loc, mustZone(t, "America/New_York"))
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if len(daily) != 1 {
		t.Fatalf("expected a single bucket, got %d: %v", len(daily), daily)
	}
	d, ok := daily["2025-02-10"]
	if !ok {
		t.Fatalf("expected bucket for 2025-02-10, got %v", daily)
	}
	if d.Reservations != 2 || d.Covers != 6 || d.Revenue != 350 {
		t.Fatalf("unexpected bucket %+v", d)
	}
	if d.Timezone != "America/New_York" {
		t.Fatalf("expected bucket timezone America/New_York, got %s", d.Timezone)
	}
}

func TestBucketDailyMatchesReferenceConversion(t *testing.T) {
	zone := mustZone(t, "Asia/Tokyo")
	stamps := []string{
		"2025-06-30T14:59:59Z", // 23:59:59 JST Jun 30
		"2025-06-30T15:00:00Z", // 00:00 JST Jul 1
		"2025-01-01T00:00:00Z",
	}
	loc := models.LocationMetrics{ID: "loc-tyo", Timezone: "Asia/Tokyo"}
	for i, s := range stamps {
		loc.Reservations = append(loc.Reservations, models.Reservation{ID: string(rune('a' + i)), Timestamp: s, PartySize: 1})
	}

	daily, _ := BucketDaily(loc, zone)
	for _, s := range stamps {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		want := ts.In(zone).Format("2006-01-02")
		if _, ok := daily[want]; !ok {
			t.Fatalf("no bucket for reference date %s (stamp %s): %v", want, s, daily)
		}
	}
	if daily["2025-06-30"].Reservations != 1 || daily["2025-07-01"].Reservations != 1 {
		t.Fatalf("midnight boundary split wrong: %v", daily)
	}
}

func TestBucketDailySkipsInvalidTimestamps(t *testing.T) {
	loc := models.LocationMetrics{
		ID:       "loc-nyc",
		Timezone: "America/New_York",
		Reservations: []models.Reservation{
			{ID: "res-1", Timestamp: "2025-02-10T23:30:00Z", PartySize: 4},
			{ID: "res-bad", Timestamp: "invalid-date", PartySize: 2},
		},
		WalkIns: []models.WalkIn{
			{ID: "walk-bad", Timestamp: "also-bad", PartySize: 3},
		},
	}

	daily, warnings := BucketDaily(loc, mustZone(t, "America/New_York"))
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "res-bad") || !strings.Contains(warnings[1], "walk-bad") {
		t.Fatalf("warnings should name the offending records: %v", warnings)
	}
	d := daily["2025-02-10"]
	if d.Reservations != 1 || d.Covers != 4 {
		t.Fatalf("valid records must aggregate unchanged, got %+v", d)
	}
}

func TestBucketDailyCountsWalkInCovers(t *testing.T) {
	loc := models.LocationMetrics{
		ID:       "loc-la",
		Timezone: "America/Los_Angeles",
		Reservations: []models.Reservation{
			{ID: "res-1", Timestamp: "2025-02-11T04:00:00Z", PartySize: 6, EstimatedRevenue: 350},
		},
		WalkIns: []models.WalkIn{
			{ID: "walk-1", Timestamp: "2025-02-11T03:00:00Z", PartySize: 2},
		},
	}

	daily, _ := BucketDaily(loc, mustZone(t, "America/Los_Angeles"))
	d := daily["2025-02-10"]
	if d.Reservations != 1 || d.WalkIns != 1 || d.Covers != 8 {
		t.Fatalf("walk-in covers must sum with reservation covers, got %+v", d)
	}
	if d.Revenue != 350 {
		t.Fatalf("walk-ins carry no revenue, got %+v", d)
	}
}
