// Package summary computes event KPIs for organization members.
package summary

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/guest"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

// TicketTypeSummary is the sales breakdown for one ticket type.
type TicketTypeSummary struct {
	TicketTypeID string
	Name         string
	Capacity     int
	Sold         int
	Revenue      decimal.Decimal
	// SellThrough is Sold/Capacity in [0, 1]; zero when capacity is zero.
	SellThrough decimal.Decimal
}

// PromoterSummary counts the guests a promoter brought in.
type PromoterSummary struct {
	PromoterID string
	Guests     int
	CheckedIn  int
}

// EventSummary is the KPI snapshot for an event.
type EventSummary struct {
	EventID         string
	TicketTypes     []TicketTypeSummary
	TicketsSold     int
	GrossRevenue    decimal.Decimal
	TotalDiscount   decimal.Decimal
	OrderCount      int
	PromoRedemption map[string]int
	Guests          int
	GuestsCheckedIn int
	Promoters       []PromoterSummary
}

// Compute reduces loaded orders and guests into an EventSummary. Ticket type
// order is preserved; promoters are sorted by id. Orders for ticket types
// missing from types still count toward order totals. Ticket type revenue is
// the sum of persisted line subtotals, the same basis as GrossRevenue.
func Compute(eventID string, types []ticket.TicketType, orders []checkout.Order, guests []guest.Entry) EventSummary {
	s := EventSummary{
		EventID:         eventID,
		TicketTypes:     make([]TicketTypeSummary, len(types)),
		GrossRevenue:    decimal.Zero,
		TotalDiscount:   decimal.Zero,
		PromoRedemption: make(map[string]int),
	}

	idx := make(map[string]int, len(types))
	for i, t := range types {
		idx[t.ID] = i
		s.TicketTypes[i] = TicketTypeSummary{
			TicketTypeID: t.ID,
			Name:         t.Name,
			Capacity:     t.Capacity,
			Revenue:      decimal.Zero,
			SellThrough:  decimal.Zero,
		}
	}

	for _, o := range orders {
		s.OrderCount++
		s.GrossRevenue = s.GrossRevenue.Add(o.Total)
		s.TotalDiscount = s.TotalDiscount.Add(o.Discount)
		if o.PromoCode != "" {
			s.PromoRedemption[o.PromoCode]++
		}
		for _, l := range o.Lines {
			s.TicketsSold += l.Quantity
			i, ok := idx[l.TicketTypeID]
			if !ok {
				continue
			}
			tt := &s.TicketTypes[i]
			tt.Sold += l.Quantity
			tt.Revenue = tt.Revenue.Add(l.Subtotal)
		}
	}

	for i := range s.TicketTypes {
		tt := &s.TicketTypes[i]
		if tt.Capacity > 0 {
			ratio := decimal.NewFromInt(int64(tt.Sold)).Div(decimal.NewFromInt(int64(tt.Capacity)))
			tt.SellThrough = decimal.Min(ratio, decimal.NewFromInt(1))
		}
	}

	promoters := make(map[string]*PromoterSummary)
	for _, g := range guests {
		s.Guests++
		if g.CheckedIn() {
			s.GuestsCheckedIn++
		}
		if g.PromoterID == "" {
			continue
		}
		p, ok := promoters[g.PromoterID]
		if !ok {
			p = &PromoterSummary{PromoterID: g.PromoterID}
			promoters[g.PromoterID] = p
		}
		p.Guests++
		if g.CheckedIn() {
			p.CheckedIn++
		}
	}
	for _, p := range promoters {
		s.Promoters = append(s.Promoters, *p)
	}
	sort.Slice(s.Promoters, func(i, j int) bool {
		return s.Promoters[i].PromoterID < s.Promoters[j].PromoterID
	})

	return s
}

// Service loads the data behind an EventSummary.
type Service struct {
	catalog ticket.Catalog
	orders  checkout.Repository
	guests  guest.Repository
}

// NewService creates a summary Service.
func NewService(catalog ticket.Catalog, orders checkout.Repository, guests guest.Repository) *Service {
	return &Service{catalog: catalog, orders: orders, guests: guests}
}

// EventSummary loads ticket types, orders and guests concurrently and
// computes the summary.
func (s *Service) EventSummary(ctx context.Context, eventID string) (*EventSummary, error) {
	var (
		types  []ticket.TicketType
		orders []checkout.Order
		guests []guest.Entry
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if types, err = s.catalog.TicketTypes(ctx, eventID); err != nil {
			return errors.Wrap(err, "get ticket types")
		}
		return nil
	})
	g.Go(func() (err error) {
		if orders, err = s.orders.ListByEvent(ctx, eventID); err != nil {
			return errors.Wrap(err, "list orders")
		}
		return nil
	})
	g.Go(func() (err error) {
		if guests, err = s.guests.ListByEvent(ctx, eventID); err != nil {
			return errors.Wrap(err, "list guests")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := Compute(eventID, types, orders, guests)
	return &out, nil
}
