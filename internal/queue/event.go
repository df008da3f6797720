// Package queue carries reservation mutation events between service
// replicas. Every mutation publishes to a durable queue; a background
// consumer on each replica invalidates the aggregation result cache so
// cached rollups never outlive the data they summarize.
package queue

import "time"

// QueueName is the durable queue reservation events travel on.
const QueueName = "reservation.events"

const (
	EventReservationCreated = "reservation.created"
	EventStatusChanged      = "reservation.status_changed"
	EventWalkInCreated      = "walkin.created"
	EventDataImported       = "data.imported"
)

// ReservationEvent describes one upstream mutation.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id,omitempty"`
	LocationID    string    `json:"location_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
