package handler

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/arell305/hostlyapp/internal/domain/access"
	"github.com/arell305/hostlyapp/internal/domain/guest"
	"github.com/arell305/hostlyapp/internal/domain/summary"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

// authorizeEvent loads the event and checks that the request principal may
// perform action within the event's organization.
func (h *Handler) authorizeEvent(r *http.Request, action access.Action) (*ticket.Event, error) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		return nil, ErrUnauthorized
	}
	event, err := h.catalog.Event(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		return nil, err
	}
	if err := p.Authorize(action, event.OrganizationID); err != nil {
		zctx.From(r.Context()).Info("Access denied",
			zap.String("event_id", event.ID),
			zap.Stringer("role", p.Role),
			zap.Stringer("action", action),
		)
		return nil, err
	}
	return event, nil
}

// EventSummary returns sales and guest list KPIs for an event.
func (h *Handler) EventSummary(w http.ResponseWriter, r *http.Request) {
	event, err := h.authorizeEvent(r, access.ViewAnalytics)
	if err != nil {
		fail(w, r, err)
		return
	}
	s, err := h.summaries.EventSummary(r.Context(), event.ID)
	if err != nil {
		fail(w, r, errors.Wrap(err, "event summary"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeSummary(e, s)
	})
}

func encodeSummary(e *jx.Encoder, s *summary.EventSummary) {
	e.ObjStart()
	e.FieldStart("event_id")
	e.Str(s.EventID)

	e.FieldStart("ticket_types")
	e.ArrStart()
	for _, t := range s.TicketTypes {
		e.ObjStart()
		e.FieldStart("ticket_type_id")
		e.Str(t.TicketTypeID)
		e.FieldStart("name")
		e.Str(t.Name)
		e.FieldStart("capacity")
		e.Int(t.Capacity)
		e.FieldStart("sold")
		e.Int(t.Sold)
		fieldMoney(e, "revenue", t.Revenue)
		e.FieldStart("sell_through")
		e.Str(t.SellThrough.StringFixed(4))
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("tickets_sold")
	e.Int(s.TicketsSold)
	fieldMoney(e, "gross_revenue", s.GrossRevenue)
	fieldMoney(e, "total_discount", s.TotalDiscount)
	e.FieldStart("order_count")
	e.Int(s.OrderCount)

	codes := make([]string, 0, len(s.PromoRedemption))
	for code := range s.PromoRedemption {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	e.FieldStart("promo_redemptions")
	e.ObjStart()
	for _, code := range codes {
		e.FieldStart(code)
		e.Int(s.PromoRedemption[code])
	}
	e.ObjEnd()

	e.FieldStart("guests")
	e.Int(s.Guests)
	e.FieldStart("guests_checked_in")
	e.Int(s.GuestsCheckedIn)
	e.FieldStart("promoters")
	e.ArrStart()
	for _, p := range s.Promoters {
		e.ObjStart()
		e.FieldStart("promoter_id")
		e.Str(p.PromoterID)
		e.FieldStart("guests")
		e.Int(p.Guests)
		e.FieldStart("checked_in")
		e.Int(p.CheckedIn)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// CheckInGuest marks a guest list entry as arrived. Checking in twice is a
// 409 that leaves the first timestamp in place.
func (h *Handler) CheckInGuest(w http.ResponseWriter, r *http.Request) {
	event, err := h.authorizeEvent(r, access.CheckInGuests)
	if err != nil {
		fail(w, r, err)
		return
	}
	entry, err := h.guests.CheckIn(r.Context(), event.ID, chi.URLParam(r, "guestID"), h.now())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeGuest(e, entry)
	})
}

func encodeGuest(e *jx.Encoder, g *guest.Entry) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(g.ID)
	e.FieldStart("event_id")
	e.Str(g.EventID)
	e.FieldStart("name")
	e.Str(g.Name)
	if g.PromoterID != "" {
		e.FieldStart("promoter_id")
		e.Str(g.PromoterID)
	}
	if g.CheckedInAt != nil {
		fieldTime(e, "checked_in_at", *g.CheckedInAt)
	}
	e.ObjEnd()
}
