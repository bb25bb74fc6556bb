package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEventNotFound is returned when a requested event does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrUnknownTicketType is returned when a selection references a ticket
	// type that does not belong to the event.
	ErrUnknownTicketType = errors.New("unknown ticket type")
	// ErrSalesEnded is returned when a ticket type is past its sales end time.
	ErrSalesEnded = errors.New("ticket sales ended")
)

// Event is the unit a set of ticket types is sold for. OrganizationID is the
// tenant that owns it.
type Event struct {
	ID             string
	OrganizationID string
	Name           string
	StartsAt       time.Time
}

// TicketType is a purchasable category of admission for an event.
type TicketType struct {
	ID        string
	EventID   string
	Name      string
	UnitPrice decimal.Decimal
	Capacity  int
	// SalesEndTime is the instant after which the type can no longer be
	// purchased. The zero value means sales never end.
	SalesEndTime time.Time
}

// OnSale reports whether the ticket type can still be purchased at now.
func (t TicketType) OnSale(now time.Time) bool {
	return t.SalesEndTime.IsZero() || now.Before(t.SalesEndTime)
}

// Catalog provides read access to events and their ticket types.
type Catalog interface {
	Event(ctx context.Context, id string) (*Event, error)
	// TicketTypes returns the event's ticket types in display order.
	TicketTypes(ctx context.Context, eventID string) ([]TicketType, error)
}

// InsufficientInventoryError indicates that a ticket type cannot satisfy the
// requested quantity.
type InsufficientInventoryError struct {
	TicketTypeID string
	Requested    int
	Remaining    int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("ticket type %s: requested %d, %d remaining",
		e.TicketTypeID, e.Requested, e.Remaining)
}

// Inventory tracks how many units of each ticket type have been sold.
type Inventory interface {
	// Sold returns the sold count for each id. Ids without sales map to zero.
	Sold(ctx context.Context, ids []string) (map[string]int, error)
	// Reserve atomically adds quantities to the sold counters. Either every
	// line fits within its capacity or nothing is reserved and an
	// *InsufficientInventoryError is returned.
	Reserve(ctx context.Context, capacities, quantities map[string]int) error
	// Release returns previously reserved quantities.
	Release(ctx context.Context, quantities map[string]int) error
}

// Remaining returns capacity minus sold for every ticket type, floored at zero.
func Remaining(types []TicketType, sold map[string]int) map[string]int {
	out := make(map[string]int, len(types))
	for _, t := range types {
		left := t.Capacity - sold[t.ID]
		if left < 0 {
			left = 0
		}
		out[t.ID] = left
	}
	return out
}

// Capacities indexes the capacity of each ticket type by id.
func Capacities(types []TicketType) map[string]int {
	out := make(map[string]int, len(types))
	for _, t := range types {
		out[t.ID] = t.Capacity
	}
	return out
}

// IDs returns the ticket type ids in input order.
func IDs(types []TicketType) []string {
	ids := make([]string, len(types))
	for i, t := range types {
		ids[i] = t.ID
	}
	return ids
}
