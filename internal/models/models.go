package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusSeated    = "seated"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
	StatusCancelled = "cancelled"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSeated, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Reservation is an immutable record owned by the location that took it.
// Timestamp is the raw RFC3339 UTC instant as received from the source; it is
// parsed during aggregation so malformed values can be skipped and reported
// instead of silently coerced to a default date.
type Reservation struct {
	ID                 string  `json:"id"`
	GuestID            string  `json:"guestId"`
	LocationID         string  `json:"locationId"`
	TableID            string  `json:"tableId,omitempty"`
	Timestamp          string  `json:"timestamp"`
	PartySize          int     `json:"partySize"`
	Status             string  `json:"status"`
	Notes              string  `json:"notes,omitempty"`
	EstimatedRevenue   float64 `json:"estimatedRevenue,omitempty"`
	PreviousLocationID string  `json:"previousLocationId,omitempty"`
}

// WalkIn has no status field: a walk-in is an already realized visit.
type WalkIn struct {
	ID         string `json:"id"`
	LocationID string `json:"locationId"`
	TableID    string `json:"tableId,omitempty"`
	Timestamp  string `json:"timestamp"`
	PartySize  int    `json:"partySize"`
	GuestID    string `json:"guestId,omitempty"`
}

type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Timezone string `json:"timezone"`
}

// LocationMetrics is the per-location payload a metrics source returns for
// one query window: the location context plus its raw records.
type LocationMetrics struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Timezone     string        `json:"timezone"`
	Reservations []Reservation `json:"reservations"`
	WalkIns      []WalkIn      `json:"walkIns"`
}

// MetricsQuery selects the locations and the UTC [start, end) window to
// aggregate over.
type MetricsQuery struct {
	LocationIDs []string
	StartDate   time.Time
	EndDate     time.Time
}

// DailyMetrics is one civil-date bucket. Date is the calendar day as
// experienced in Timezone. The counts are timezone-independent once
// bucketed; Timezone is display metadata only.
type DailyMetrics struct {
	Date         string  `json:"date"`
	Timezone     string  `json:"timezone"`
	Reservations int     `json:"reservations"`
	WalkIns      int     `json:"walkIns"`
	Covers       int     `json:"covers"`
	Revenue      float64 `json:"revenue"`
}

type MigrationRoute struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AggregatedMetrics is the cross-location rollup returned to the dashboard.
// It is always fully populated: empty inputs yield zero values and sentinels,
// never nulls.
type AggregatedMetrics struct {
	TotalReservations   int               `json:"totalReservations"`
	AveragePartySize    float64           `json:"averagePartySize"`
	PeakHour            string            `json:"peakHour"`
	NoShowRate          float64           `json:"noShowRate"`
	NoShowChange        float64           `json:"noShowChange"`
	ReservationGrowth   float64           `json:"reservationGrowth"`
	DailyData           []DailyMetrics    `json:"dailyData"`
	CrossLocationGuests int               `json:"crossLocationGuests"`
	TopMigration        MigrationRoute    `json:"topMigration"`
	LocationNames       map[string]string `json:"locationNames"`
	Warnings            []string          `json:"warnings,omitempty"`
}
