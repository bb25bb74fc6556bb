package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arell305/hostlyapp/internal/domain/pricing"
	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

// Sentinel errors for order validation.
var (
	ErrEmptySelection = errors.New("at least one ticket is required")
	ErrEmailRequired  = errors.New("email is required")
)

// QuoteRequest holds the input for pricing a selection.
type QuoteRequest struct {
	EventID   string
	Selection pricing.Selection
	PromoCode string
}

// Quote is a priced selection. Selection quantities above the remaining
// inventory are clamped.
type Quote struct {
	Event     ticket.Event
	Types     []ticket.TicketType
	Remaining map[string]int
	Pricing   pricing.Result
	// Promo is nil when no code was entered or the code was rejected.
	Promo *promo.Validation
	// PromoError explains why the entered code was rejected.
	PromoError string
}

// OrderRequest holds the input for placing an order.
type OrderRequest struct {
	EventID   string
	Selection pricing.Selection
	PromoCode string
	Email     string
}

// Service prices selections and places orders.
type Service struct {
	catalog   ticket.Catalog
	inventory ticket.Inventory
	promos    promo.Validator
	redeemer  promo.Repository
	orders    Repository
	publisher Publisher
	now       func() time.Time
}

// NewService creates a checkout Service with the required domain dependencies.
func NewService(
	catalog ticket.Catalog,
	inventory ticket.Inventory,
	promos promo.Validator,
	redeemer promo.Repository,
	orders Repository,
	publisher Publisher,
) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		catalog:   catalog,
		inventory: inventory,
		promos:    promos,
		redeemer:  redeemer,
		orders:    orders,
		publisher: publisher,
		now:       time.Now,
	}
}

type snapshot struct {
	event     *ticket.Event
	types     []ticket.TicketType
	remaining map[string]int
}

// load fetches the event concurrently with its ticket types and sold counts.
func (s *Service) load(ctx context.Context, eventID string) (*snapshot, error) {
	var (
		snap snapshot
		sold map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.catalog.Event(gctx, eventID)
		if err != nil {
			return errors.Wrap(err, "get event")
		}
		snap.event = e
		return nil
	})
	g.Go(func() error {
		types, err := s.catalog.TicketTypes(gctx, eventID)
		if err != nil {
			return errors.Wrap(err, "get ticket types")
		}
		snap.types = types
		sold, err = s.inventory.Sold(gctx, ticket.IDs(types))
		if err != nil {
			return errors.Wrap(err, "get sold counts")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.remaining = ticket.Remaining(snap.types, sold)
	return &snap, nil
}

func (s *Service) session(snap *snapshot) *Session {
	sess := NewSession(*snap.event, snap.types, snap.remaining, s.promos)
	sess.now = s.now
	return sess
}

// Quote prices the selection for an event. A rejected promo code is
// reported in Quote.PromoError and the selection is priced without it.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	snap, err := s.load(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	sess := s.session(snap)
	for id, qty := range req.Selection {
		if qty <= 0 {
			continue
		}
		if _, err := sess.SetQuantity(id, qty); err != nil {
			return nil, err
		}
	}

	q := &Quote{
		Event:     *snap.event,
		Types:     snap.types,
		Remaining: snap.remaining,
	}

	sess.SetPromoCode(req.PromoCode)
	res := sess.ApplyPromo(ctx)
	if err := res.Err(); err != nil {
		msg, ok := PromoMessage(err)
		if !ok {
			return nil, errors.Wrap(err, "validate promo code")
		}
		q.PromoError = msg
	}
	q.Promo, _ = res.Value()
	q.Pricing = sess.Pricing()
	return q, nil
}

// PlaceOrder validates the selection against current inventory, reserves
// the tickets, consumes a promo use, persists the order and publishes an
// OrderPlaced event. Reserved tickets and the promo use are returned if a
// later step fails.
func (s *Service) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if req.Selection.Total() == 0 {
		return nil, ErrEmptySelection
	}

	snap, err := s.load(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	sess := s.session(snap)
	for id, qty := range req.Selection {
		if qty <= 0 {
			continue
		}
		applied, err := sess.SetQuantity(id, qty)
		if err != nil {
			return nil, err
		}
		if applied < qty {
			return nil, &ticket.InsufficientInventoryError{
				TicketTypeID: id,
				Requested:    qty,
				Remaining:    snap.remaining[id],
			}
		}
	}

	var code string
	if promo.Normalize(req.PromoCode) != "" {
		sess.SetPromoCode(req.PromoCode)
		res := sess.ApplyPromo(ctx)
		if err := res.Err(); err != nil {
			return nil, errors.Wrap(err, "validate promo code")
		}
		v, _ := res.Value()
		code = v.Code
	}

	priced := sess.Pricing()
	quantities := priced.Quantities()

	if err := s.inventory.Reserve(ctx, ticket.Capacities(snap.types), quantities); err != nil {
		return nil, errors.Wrap(err, "reserve tickets")
	}
	release := func() {
		if err := s.inventory.Release(context.WithoutCancel(ctx), quantities); err != nil {
			zctx.From(ctx).Error("Release reserved tickets",
				zap.String("event_id", snap.event.ID),
				zap.Error(err),
			)
		}
	}

	if code != "" {
		if err := s.redeemer.Redeem(ctx, code); err != nil {
			release()
			return nil, errors.Wrap(err, "redeem promo code")
		}
	}

	o := &Order{
		ID:             uuid.New().String(),
		EventID:        snap.event.ID,
		OrganizationID: snap.event.OrganizationID,
		Email:          email,
		Lines:          make([]OrderLine, len(priced.Lines)),
		Total:          decimal.Zero,
		PromoCode:      code,
		CreatedAt:      s.now(),
	}
	list := decimal.Zero
	for i, l := range priced.Lines {
		o.Lines[i] = OrderLine{
			TicketTypeID:        l.TicketTypeID,
			Quantity:            l.Quantity,
			UnitPrice:           l.UnitPrice,
			DiscountedUnitPrice: l.DiscountedUnitPrice,
			Subtotal:            pricing.Round(l.Subtotal),
		}
		o.Total = o.Total.Add(o.Lines[i].Subtotal)
		list = list.Add(pricing.Round(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))))
	}
	o.Discount = decimal.Max(list.Sub(o.Total), decimal.Zero)
	if err := s.orders.Create(ctx, o); err != nil {
		release()
		if code != "" {
			if err := s.redeemer.Refund(context.WithoutCancel(ctx), code); err != nil {
				zctx.From(ctx).Error("Refund promo code",
					zap.String("code", code),
					zap.Error(err),
				)
			}
		}
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.publisher.PublishOrderPlaced(ctx, o); err != nil {
		zctx.From(ctx).Warn("Publish order placed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
	return o, nil
}

// PromoMessage returns the purchaser-facing explanation for a promo
// rejection. ok is false for infrastructure failures.
func PromoMessage(err error) (msg string, ok bool) {
	switch {
	case errors.Is(err, promo.ErrEmptyCode):
		return "Enter a promo code.", true
	case errors.Is(err, promo.ErrUnknownCode):
		return "This promo code is not valid.", true
	case errors.Is(err, promo.ErrCodeExpired):
		return "This promo code has expired.", true
	case errors.Is(err, promo.ErrUsageLimitReached):
		return "This promo code has reached its usage limit.", true
	case errors.Is(err, promo.ErrNotApplicable):
		return "This promo code does not apply to this event.", true
	default:
		return "", false
	}
}
