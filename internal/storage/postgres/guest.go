package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arell305/hostlyapp/internal/domain/guest"
)

const (
	listGuestsSQL = `SELECT id, event_id, name, promoter_id, checked_in_at
		FROM guests WHERE event_id = $1 ORDER BY name, id`

	checkInGuestSQL = `UPDATE guests SET checked_in_at = $3
		WHERE event_id = $1 AND id = $2 AND checked_in_at IS NULL
		RETURNING id, event_id, name, promoter_id, checked_in_at`

	getGuestSQL = `SELECT id, event_id, name, promoter_id, checked_in_at
		FROM guests WHERE event_id = $1 AND id = $2`

	upsertGuestSQL = `INSERT INTO guests (id, event_id, name, promoter_id, checked_in_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			name = EXCLUDED.name,
			promoter_id = EXCLUDED.promoter_id`
)

var _ guest.Repository = (*GuestRepository)(nil)

// GuestRepository implements guest.Repository backed by PostgreSQL.
type GuestRepository struct {
	pool *pgxpool.Pool
}

// NewGuestRepository returns a GuestRepository that uses the given pool.
func NewGuestRepository(pool *pgxpool.Pool) *GuestRepository {
	return &GuestRepository{pool: pool}
}

// ListByEvent returns the event's guest list ordered by name.
func (r *GuestRepository) ListByEvent(ctx context.Context, eventID string) ([]guest.Entry, error) {
	rows, err := r.pool.Query(ctx, listGuestsSQL, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing guests for %q: %w", eventID, err)
	}
	return pgx.CollectRows(rows, scanGuest)
}

// CheckIn marks the guest as arrived. The conditional update makes a second
// check-in a no-op that reports guest.ErrAlreadyCheckedIn.
func (r *GuestRepository) CheckIn(ctx context.Context, eventID, guestID string, at time.Time) (*guest.Entry, error) {
	rows, err := r.pool.Query(ctx, checkInGuestSQL, eventID, guestID, at)
	if err != nil {
		return nil, fmt.Errorf("checking in guest %q: %w", guestID, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanGuest)
	if err == nil {
		return &e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("checking in guest %q: %w", guestID, err)
	}

	rows, err = r.pool.Query(ctx, getGuestSQL, eventID, guestID)
	if err != nil {
		return nil, fmt.Errorf("getting guest %q: %w", guestID, err)
	}
	e, err = pgx.CollectExactlyOneRow(rows, scanGuest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, guest.ErrNotFound
		}
		return nil, fmt.Errorf("getting guest %q: %w", guestID, err)
	}
	return &e, guest.ErrAlreadyCheckedIn
}

// Upsert inserts or updates a guest list entry without touching its
// check-in time.
func (r *GuestRepository) Upsert(ctx context.Context, e guest.Entry) error {
	if _, err := r.pool.Exec(ctx, upsertGuestSQL, e.ID, e.EventID, e.Name, e.PromoterID, e.CheckedInAt); err != nil {
		return fmt.Errorf("upserting guest %q: %w", e.ID, err)
	}
	return nil
}

func scanGuest(row pgx.CollectableRow) (guest.Entry, error) {
	var e guest.Entry
	err := row.Scan(&e.ID, &e.EventID, &e.Name, &e.PromoterID, &e.CheckedInAt)
	return e, err
}
