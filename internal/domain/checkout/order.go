package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a placed ticket order. Amounts are rounded to cents. Total is the
// sum of the line subtotals and Discount is what the lines save against
// list price, so the two always reconcile with the lines.
type Order struct {
	ID             string
	EventID        string
	OrganizationID string
	Email          string
	Lines          []OrderLine
	Total          decimal.Decimal
	Discount       decimal.Decimal
	PromoCode      string
	CreatedAt      time.Time
}

// Quantity returns the number of tickets in the order.
func (o *Order) Quantity() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// OrderLine is a single ticket type within an order.
type OrderLine struct {
	TicketTypeID        string
	Quantity            int
	UnitPrice           decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	// Subtotal is DiscountedUnitPrice * Quantity rounded to cents.
	Subtotal decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	ListByEvent(ctx context.Context, eventID string) ([]Order, error)
}

// Publisher announces placed orders to downstream consumers.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order *Order) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// PublishOrderPlaced implements Publisher.
func (NopPublisher) PublishOrderPlaced(context.Context, *Order) error { return nil }
