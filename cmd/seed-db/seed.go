package main

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arell305/hostlyapp/internal/domain/guest"
	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

// eventSeed is an event together with its ticket types in display order.
type eventSeed struct {
	Event       ticket.Event
	TicketTypes []ticket.TicketType
}

type seedData struct {
	Events []eventSeed
	Promos []promo.Rule
	Guests []guest.Entry
}

func decodeSeed(data []byte) (*seedData, error) {
	var s seedData
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "events":
			return d.Arr(func(d *jx.Decoder) error {
				e, err := decodeEvent(d)
				if err != nil {
					return err
				}
				s.Events = append(s.Events, e)
				return nil
			})
		case "promo_codes":
			return d.Arr(func(d *jx.Decoder) error {
				r, err := decodePromo(d)
				if err != nil {
					return err
				}
				s.Promos = append(s.Promos, r)
				return nil
			})
		case "guests":
			return d.Arr(func(d *jx.Decoder) error {
				g, err := decodeGuest(d)
				if err != nil {
					return err
				}
				s.Guests = append(s.Guests, g)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return &s, nil
}

func decodeEvent(d *jx.Decoder) (eventSeed, error) {
	var (
		e   eventSeed
		err error
	)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			e.Event.ID, err = d.Str()
		case "organization_id":
			e.Event.OrganizationID, err = d.Str()
		case "name":
			e.Event.Name, err = d.Str()
		case "starts_at":
			var t *time.Time
			if t, err = decodeTime(d); err == nil && t != nil {
				e.Event.StartsAt = *t
			}
		case "ticket_types":
			err = d.Arr(func(d *jx.Decoder) error {
				t, err := decodeTicketType(d)
				if err != nil {
					return err
				}
				e.TicketTypes = append(e.TicketTypes, t)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return e, errors.Wrap(err, "event")
	}
	if e.Event.ID == "" || e.Event.OrganizationID == "" {
		return e, errors.New("event requires id and organization_id")
	}
	for i := range e.TicketTypes {
		e.TicketTypes[i].EventID = e.Event.ID
	}
	return e, nil
}

func decodeTicketType(d *jx.Decoder) (ticket.TicketType, error) {
	var (
		t   ticket.TicketType
		err error
	)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			t.ID, err = d.Str()
		case "name":
			t.Name, err = d.Str()
		case "unit_price":
			t.UnitPrice, err = decodeDecimal(d)
		case "capacity":
			t.Capacity, err = d.Int()
		case "sales_end_time":
			var end *time.Time
			if end, err = decodeTime(d); err == nil && end != nil {
				t.SalesEndTime = *end
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return t, errors.Wrap(err, "ticket type")
	}
	if t.ID == "" {
		return t, errors.New("ticket type requires id")
	}
	return t, nil
}

func decodePromo(d *jx.Decoder) (promo.Rule, error) {
	var (
		r   = promo.Rule{Active: true}
		err error
	)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			var code string
			code, err = d.Str()
			r.Code = promo.Normalize(code)
		case "organization_id":
			r.OrganizationID, err = d.Str()
		case "event_id":
			r.EventID, err = d.Str()
		case "discount_percent":
			r.DiscountPercent, err = decodeDecimal(d)
		case "description":
			r.Description, err = d.Str()
		case "valid_from":
			r.ValidFrom, err = decodeTime(d)
		case "valid_until":
			r.ValidUntil, err = decodeTime(d)
		case "max_uses":
			r.MaxUses, err = d.Int()
		case "active":
			r.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return r, errors.Wrap(err, "promo code")
	}
	if r.Code == "" || r.OrganizationID == "" {
		return r, errors.New("promo code requires code and organization_id")
	}
	return r, nil
}

func decodeGuest(d *jx.Decoder) (guest.Entry, error) {
	var (
		g   guest.Entry
		err error
	)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			g.ID, err = d.Str()
		case "event_id":
			g.EventID, err = d.Str()
		case "name":
			g.Name, err = d.Str()
		case "promoter_id":
			g.PromoterID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return g, errors.Wrap(err, "guest")
	}
	if g.ID == "" || g.EventID == "" {
		return g, errors.New("guest requires id and event_id")
	}
	return g, nil
}

// decodeDecimal accepts both "12.50" and 12.5.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

// decodeTime reads an RFC 3339 string. Null yields nil.
func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type catalogWriter interface {
	UpsertEvent(ctx context.Context, e ticket.Event) error
	UpsertTicketType(ctx context.Context, t ticket.TicketType, position int) error
}

type promoWriter interface {
	UpsertRule(ctx context.Context, rule promo.Rule) error
}

type guestWriter interface {
	Upsert(ctx context.Context, e guest.Entry) error
}

// apply writes events before the promo codes and guests that reference them.
func apply(ctx context.Context, lg *zap.Logger, s *seedData, catalog catalogWriter, promos promoWriter, guests guestWriter) error {
	for _, e := range s.Events {
		if err := catalog.UpsertEvent(ctx, e.Event); err != nil {
			return err
		}
		for i, t := range e.TicketTypes {
			if err := catalog.UpsertTicketType(ctx, t, i); err != nil {
				return err
			}
		}
		lg.Info("Upserted event",
			zap.String("id", e.Event.ID),
			zap.String("name", e.Event.Name),
			zap.Int("ticket_types", len(e.TicketTypes)),
		)
	}
	for _, r := range s.Promos {
		if err := promos.UpsertRule(ctx, r); err != nil {
			return err
		}
		lg.Info("Upserted promo code", zap.String("code", r.Code), zap.String("description", r.Description))
	}
	for _, g := range s.Guests {
		if err := guests.Upsert(ctx, g); err != nil {
			return err
		}
	}
	lg.Info("Upserted guests", zap.Int("count", len(s.Guests)))
	return nil
}
