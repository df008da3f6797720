package source

import (
	"context"
	"time"

	"github.com/tablewise/backend/internal/models"
)

// Source supplies one location's raw reservations and walk-ins for a UTC
// [start, end) window, tagged with the location's timezone and display name.
// An error return fails the caller's whole query; sources must not fabricate
// empty payloads for locations they cannot serve.
type Source interface {
	LocationMetrics(ctx context.Context, locationID string, start, end time.Time) (models.LocationMetrics, error)
}
