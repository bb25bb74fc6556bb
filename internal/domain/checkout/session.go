package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/arell305/hostlyapp/internal/domain/pricing"
	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/result"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

// Session is the mutable state of one purchaser's checkout for an event.
// All methods are safe for concurrent use; callers share a *Session rather
// than copying it.
type Session struct {
	event     ticket.Event
	types     []ticket.TicketType
	byID      map[string]ticket.TicketType
	remaining map[string]int
	validator promo.Validator
	now       func() time.Time

	mu        sync.Mutex
	selection pricing.Selection
	code      string
	promo     result.Result[*promo.Validation]
}

// NewSession starts an empty checkout for the event. remaining bounds the
// quantity that can be selected per ticket type.
func NewSession(
	event ticket.Event,
	types []ticket.TicketType,
	remaining map[string]int,
	validator promo.Validator,
) *Session {
	byID := make(map[string]ticket.TicketType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}
	return &Session{
		event:     event,
		types:     types,
		byID:      byID,
		remaining: remaining,
		validator: validator,
		now:       time.Now,
		selection: make(pricing.Selection),
	}
}

// SetQuantity sets the selected quantity for a ticket type and returns the
// quantity actually applied, clamped to [0, remaining].
func (s *Session) SetQuantity(ticketTypeID string, qty int) (int, error) {
	t, ok := s.byID[ticketTypeID]
	if !ok {
		return 0, errors.Wrapf(ticket.ErrUnknownTicketType, "%q", ticketTypeID)
	}
	if qty > 0 && !t.OnSale(s.now()) {
		return 0, errors.Wrapf(ticket.ErrSalesEnded, "%q", ticketTypeID)
	}
	qty = min(max(qty, 0), s.remaining[ticketTypeID])

	s.mu.Lock()
	defer s.mu.Unlock()
	if qty == 0 {
		delete(s.selection, ticketTypeID)
	} else {
		s.selection[ticketTypeID] = qty
	}
	return qty, nil
}

// SetPromoCode replaces the entered code and discards any previous
// validation outcome.
func (s *Session) SetPromoCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.promo = result.Result[*promo.Validation]{}
}

// ApplyPromo validates the entered code. A blank code resets the promo to
// Idle. If the code changes while validation is in flight, the stale outcome
// is dropped.
func (s *Session) ApplyPromo(ctx context.Context) result.Result[*promo.Validation] {
	s.mu.Lock()
	code := s.code
	if promo.Normalize(code) == "" {
		s.promo = result.Result[*promo.Validation]{}
		s.mu.Unlock()
		return s.promo
	}
	s.promo = result.NewLoading[*promo.Validation]()
	s.mu.Unlock()

	v, err := s.validator.Validate(ctx, code, promo.Scope{
		OrganizationID: s.event.OrganizationID,
		EventID:        s.event.ID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code != code {
		return s.promo
	}
	if err != nil {
		s.promo = result.Fail[*promo.Validation](err)
	} else {
		s.promo = result.Succeed(v)
	}
	return s.promo
}

// Promo returns the current promo validation state.
func (s *Session) Promo() result.Result[*promo.Validation] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promo
}

// Selection returns a copy of the current selection.
func (s *Session) Selection() pricing.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(pricing.Selection, len(s.selection))
	for id, qty := range s.selection {
		out[id] = qty
	}
	return out
}

// Pricing prices the current selection with the current promo. Only a
// succeeded validation contributes a discount.
func (s *Session) Pricing() pricing.Result {
	s.mu.Lock()
	sel := make(pricing.Selection, len(s.selection))
	for id, qty := range s.selection {
		sel[id] = qty
	}
	v, _ := s.promo.Value()
	s.mu.Unlock()

	return pricing.Compute(s.types, sel, v)
}
