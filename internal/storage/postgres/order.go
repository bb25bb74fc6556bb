package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/pricing"
)

const (
	createOrderSQL = `INSERT INTO orders (id, event_id, organization_id, email, lines, total, discount, promo_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listOrdersByEventSQL = `SELECT id, event_id, organization_id, email, lines, total, discount, promo_code, created_at
		FROM orders WHERE event_id = $1 ORDER BY created_at, id`

	soldByTicketTypeSQL = `SELECT l->>'ticket_type_id', SUM((l->>'quantity')::int)
		FROM orders, jsonb_array_elements(lines) AS l
		GROUP BY 1`
)

var _ checkout.Repository = (*OrderRepository)(nil)

// OrderRepository implements checkout.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Lines are stored as a JSONB array.
func (r *OrderRepository) Create(ctx context.Context, o *checkout.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.EventID, o.OrganizationID, o.Email, encodeLines(o.Lines),
		o.Total, o.Discount, o.PromoCode, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// ListByEvent returns the event's orders, oldest first.
func (r *OrderRepository) ListByEvent(ctx context.Context, eventID string) ([]checkout.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByEventSQL, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", eventID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// SoldByTicketType sums ordered quantities per ticket type across all orders.
func (r *OrderRepository) SoldByTicketType(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, soldByTicketTypeSQL)
	if err != nil {
		return nil, fmt.Errorf("summing sold tickets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			id   string
			sold int64
		)
		if err := rows.Scan(&id, &sold); err != nil {
			return nil, fmt.Errorf("summing sold tickets: %w", err)
		}
		out[id] = int(sold)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.CollectableRow) (checkout.Order, error) {
	var (
		o         checkout.Order
		lines     []byte
		createdAt time.Time
	)
	if err := row.Scan(
		&o.ID, &o.EventID, &o.OrganizationID, &o.Email, &lines,
		&o.Total, &o.Discount, &o.PromoCode, &createdAt,
	); err != nil {
		return o, err
	}
	o.CreatedAt = createdAt

	var err error
	o.Lines, err = decodeLines(lines)
	if err != nil {
		return o, errors.Wrapf(err, "decode lines of order %s", o.ID)
	}
	return o, nil
}

func encodeLines(lines []checkout.OrderLine) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("ticket_type_id")
		e.Str(l.TicketTypeID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		e.Str(l.UnitPrice.String())
		e.FieldStart("discounted_unit_price")
		e.Str(l.DiscountedUnitPrice.String())
		e.FieldStart("subtotal")
		e.Str(l.Subtotal.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeLines(data []byte) ([]checkout.OrderLine, error) {
	var lines []checkout.OrderLine
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var (
			l           checkout.OrderLine
			hasSubtotal bool
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "ticket_type_id":
				v, err := d.Str()
				l.TicketTypeID = v
				return err
			case "quantity":
				v, err := d.Int()
				l.Quantity = v
				return err
			case "unit_price":
				return decodeDecimal(d, &l.UnitPrice)
			case "discounted_unit_price":
				return decodeDecimal(d, &l.DiscountedUnitPrice)
			case "subtotal":
				hasSubtotal = true
				return decodeDecimal(d, &l.Subtotal)
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if !hasSubtotal {
			l.Subtotal = pricing.Round(l.DiscountedUnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

func decodeDecimal(d *jx.Decoder, dst *decimal.Decimal) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
