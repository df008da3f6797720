package source

import (
	"context"
	"time"

	"github.com/tablewise/backend/internal/db"
	"github.com/tablewise/backend/internal/models"
)

// Store serves location metrics straight from the local Postgres store, for
// deployments where this service is the system of record. An unknown
// location id is an error, not an empty payload.
type Store struct {
	Store *db.Store
}

func (s Store) LocationMetrics(ctx context.Context, locationID string, start, end time.Time) (models.LocationMetrics, error) {
	loc, err := s.Store.GetLocation(ctx, locationID)
	if err != nil {
		return models.LocationMetrics{}, err
	}

	reservations, err := s.Store.ReservationsInWindow(ctx, locationID, start, end)
	if err != nil {
		return models.LocationMetrics{}, err
	}
	walkIns, err := s.Store.WalkInsInWindow(ctx, locationID, start, end)
	if err != nil {
		return models.LocationMetrics{}, err
	}

	return models.LocationMetrics{
		ID:           loc.ID,
		Name:         loc.Name,
		Timezone:     loc.Timezone,
		Reservations: reservations,
		WalkIns:      walkIns,
	}, nil
}
