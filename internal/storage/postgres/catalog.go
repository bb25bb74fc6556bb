package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

const (
	getEventSQL = `SELECT id, organization_id, name, starts_at FROM events WHERE id = $1`

	listTicketTypesSQL = `SELECT id, event_id, name, unit_price, capacity, sales_end_time
		FROM ticket_types WHERE event_id = $1 ORDER BY position, id`

	upsertEventSQL = `INSERT INTO events (id, organization_id, name, starts_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			name = EXCLUDED.name,
			starts_at = EXCLUDED.starts_at`

	upsertTicketTypeSQL = `INSERT INTO ticket_types (id, event_id, name, unit_price, capacity, sales_end_time, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			capacity = EXCLUDED.capacity,
			sales_end_time = EXCLUDED.sales_end_time,
			position = EXCLUDED.position`
)

var _ ticket.Catalog = (*CatalogRepository)(nil)

// CatalogRepository implements ticket.Catalog backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Event returns a single event. Returns ticket.ErrEventNotFound when no
// event has the id.
func (r *CatalogRepository) Event(ctx context.Context, id string) (*ticket.Event, error) {
	rows, err := r.pool.Query(ctx, getEventSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting event %q: %w", id, err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (ticket.Event, error) {
		var e ticket.Event
		err := row.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.StartsAt)
		return e, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticket.ErrEventNotFound
		}
		return nil, fmt.Errorf("getting event %q: %w", id, err)
	}
	return &e, nil
}

// TicketTypes returns the event's ticket types in display order.
func (r *CatalogRepository) TicketTypes(ctx context.Context, eventID string) ([]ticket.TicketType, error) {
	rows, err := r.pool.Query(ctx, listTicketTypesSQL, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing ticket types for %q: %w", eventID, err)
	}
	return pgx.CollectRows(rows, scanTicketType)
}

// UpsertEvent inserts or updates an event.
func (r *CatalogRepository) UpsertEvent(ctx context.Context, e ticket.Event) error {
	if _, err := r.pool.Exec(ctx, upsertEventSQL, e.ID, e.OrganizationID, e.Name, e.StartsAt); err != nil {
		return fmt.Errorf("upserting event %q: %w", e.ID, err)
	}
	return nil
}

// UpsertTicketType inserts or updates a ticket type at the given display position.
func (r *CatalogRepository) UpsertTicketType(ctx context.Context, t ticket.TicketType, position int) error {
	var salesEnd *time.Time
	if !t.SalesEndTime.IsZero() {
		salesEnd = &t.SalesEndTime
	}
	if _, err := r.pool.Exec(ctx, upsertTicketTypeSQL,
		t.ID, t.EventID, t.Name, t.UnitPrice, t.Capacity, salesEnd, position,
	); err != nil {
		return fmt.Errorf("upserting ticket type %q: %w", t.ID, err)
	}
	return nil
}

func scanTicketType(row pgx.CollectableRow) (ticket.TicketType, error) {
	var (
		t        ticket.TicketType
		capacity int32
		salesEnd *time.Time
	)
	err := row.Scan(&t.ID, &t.EventID, &t.Name, &t.UnitPrice, &capacity, &salesEnd)
	t.Capacity = int(capacity)
	if salesEnd != nil {
		t.SalesEndTime = *salesEnd
	}
	return t, err
}
