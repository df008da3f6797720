package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablewise/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetLocation(ctx context.Context, id string) (models.Location, error) {
	var loc models.Location
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(address, ''), timezone FROM locations WHERE id = $1`, id).
		Scan(&loc.ID, &loc.Name, &loc.Address, &loc.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Location{}, fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	return loc, err
}

func (s *Store) ListLocations(ctx context.Context) ([]models.Location, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, COALESCE(address, ''), timezone FROM locations ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Address, &loc.Timezone); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// ReservationsInWindow returns a location's reservations with a UTC timestamp
// in [start, end). Timestamps are rendered back to RFC3339 strings, the wire
// form the aggregation layer consumes.
func (s *Store) ReservationsInWindow(ctx context.Context, locationID string, start, end time.Time) ([]models.Reservation, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, guest_id, location_id, COALESCE(table_id, ''), ts, party_size, status,
		        COALESCE(notes, ''), COALESCE(estimated_revenue, 0), COALESCE(previous_location_id, '')
		 FROM reservations
		 WHERE location_id = $1 AND ts >= $2 AND ts < $3
		 ORDER BY ts ASC, id ASC`,
		locationID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Reservation{}
	for rows.Next() {
		var r models.Reservation
		var ts time.Time
		if err := rows.Scan(&r.ID, &r.GuestID, &r.LocationID, &r.TableID, &ts, &r.PartySize, &r.Status,
			&r.Notes, &r.EstimatedRevenue, &r.PreviousLocationID); err != nil {
			return nil, err
		}
		r.Timestamp = ts.UTC().Format(time.RFC3339)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) WalkInsInWindow(ctx context.Context, locationID string, start, end time.Time) ([]models.WalkIn, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, location_id, COALESCE(table_id, ''), ts, party_size, COALESCE(guest_id, '')
		 FROM walk_ins
		 WHERE location_id = $1 AND ts >= $2 AND ts < $3
		 ORDER BY ts ASC, id ASC`,
		locationID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.WalkIn{}
	for rows.Next() {
		var w models.WalkIn
		var ts time.Time
		if err := rows.Scan(&w.ID, &w.LocationID, &w.TableID, &ts, &w.PartySize, &w.GuestID); err != nil {
			return nil, err
		}
		w.Timestamp = ts.UTC().Format(time.RFC3339)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) InsertReservation(ctx context.Context, r models.Reservation, ts time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO reservations (id, guest_id, location_id, table_id, ts, party_size, status, notes, estimated_revenue, previous_location_id)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''))`,
		r.ID, r.GuestID, r.LocationID, r.TableID, ts.UTC(), r.PartySize, r.Status, r.Notes, r.EstimatedRevenue, r.PreviousLocationID)
	return err
}

func (s *Store) InsertWalkIn(ctx context.Context, w models.WalkIn, ts time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO walk_ins (id, location_id, table_id, ts, party_size, guest_id)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''))`,
		w.ID, w.LocationID, w.TableID, ts.UTC(), w.PartySize, w.GuestID)
	return err
}

func (s *Store) UpdateReservationStatus(ctx context.Context, id string, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE reservations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) InsertLocations(ctx context.Context, locations []models.Location) (int64, error) {
	rows := make([][]any, 0, len(locations))
	for _, l := range locations {
		rows = append(rows, []any{l.ID, l.Name, l.Address, l.Timezone})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"locations"}, []string{"id", "name", "address", "timezone"}, pgx.CopyFromRows(rows))
}

// InsertReservations bulk-loads reservations whose Timestamp strings were
// already validated by the caller.
func (s *Store) InsertReservations(ctx context.Context, reservations []models.Reservation) (int64, error) {
	rows := make([][]any, 0, len(reservations))
	for _, r := range reservations {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		rows = append(rows, []any{r.ID, r.GuestID, r.LocationID, nullable(r.TableID), ts.UTC(), r.PartySize, r.Status, nullable(r.Notes), r.EstimatedRevenue, nullable(r.PreviousLocationID)})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"reservations"},
		[]string{"id", "guest_id", "location_id", "table_id", "ts", "party_size", "status", "notes", "estimated_revenue", "previous_location_id"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertWalkIns(ctx context.Context, walkIns []models.WalkIn) (int64, error) {
	rows := make([][]any, 0, len(walkIns))
	for _, w := range walkIns {
		ts, err := time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("walk-in %s: %w", w.ID, err)
		}
		rows = append(rows, []any{w.ID, w.LocationID, nullable(w.TableID), ts.UTC(), w.PartySize, nullable(w.GuestID)})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"walk_ins"},
		[]string{"id", "location_id", "table_id", "ts", "party_size", "guest_id"},
		pgx.CopyFromRows(rows))
}

func (s *Store) ResetData(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `TRUNCATE reservations, walk_ins, locations`)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
