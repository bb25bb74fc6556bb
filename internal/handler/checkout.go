package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/pricing"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

// ListTicketTypes returns the event and the ticket types still on sale with
// their remaining inventory.
func (h *Handler) ListTicketTypes(w http.ResponseWriter, r *http.Request) {
	q, err := h.checkout.Quote(r.Context(), checkout.QuoteRequest{
		EventID: chi.URLParam(r, "eventID"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	now := h.now()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("event")
		encodeEvent(e, q.Event)
		e.FieldStart("ticket_types")
		e.ArrStart()
		for _, t := range q.Types {
			if !t.OnSale(now) {
				continue
			}
			e.ObjStart()
			e.FieldStart("id")
			e.Str(t.ID)
			e.FieldStart("name")
			e.Str(t.Name)
			fieldMoney(e, "unit_price", t.UnitPrice)
			e.FieldStart("capacity")
			e.Int(t.Capacity)
			e.FieldStart("remaining")
			e.Int(q.Remaining[t.ID])
			if !t.SalesEndTime.IsZero() {
				fieldTime(e, "sales_end_time", t.SalesEndTime)
			}
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func encodeEvent(e *jx.Encoder, ev ticket.Event) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(ev.ID)
	e.FieldStart("name")
	e.Str(ev.Name)
	fieldTime(e, "starts_at", ev.StartsAt)
	e.ObjEnd()
}

type quoteBody struct {
	Selection pricing.Selection
	PromoCode string
	Email     string
}

func (h *Handler) decodeQuoteBody(r *http.Request) (body quoteBody, err error) {
	data, err := h.readBody(r)
	if err != nil {
		return body, err
	}
	err = decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "selection":
			body.Selection, err = decodeSelection(d)
		case "promo_code":
			body.PromoCode, err = optString(d)
		case "email":
			body.Email, err = optString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return body, err
}

// Quote prices a selection. Quantities above the remaining inventory are
// clamped; a rejected promo code is reported in promo_error.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	body, err := h.decodeQuoteBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.checkout.Quote(r.Context(), checkout.QuoteRequest{
		EventID:   chi.URLParam(r, "eventID"),
		Selection: body.Selection,
		PromoCode: body.PromoCode,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		p := q.Pricing
		e.ObjStart()
		e.FieldStart("lines")
		e.ArrStart()
		for _, l := range p.Lines {
			e.ObjStart()
			e.FieldStart("ticket_type_id")
			e.Str(l.TicketTypeID)
			e.FieldStart("name")
			e.Str(l.TicketType.Name)
			e.FieldStart("quantity")
			e.Int(l.Quantity)
			e.FieldStart("remaining")
			e.Int(q.Remaining[l.TicketTypeID])
			fieldMoney(e, "unit_price", l.UnitPrice)
			fieldMoney(e, "discounted_unit_price", l.DiscountedUnitPrice)
			fieldMoney(e, "subtotal", l.Subtotal)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.FieldStart("total_quantity")
		e.Int(p.TotalQuantity)
		fieldMoney(e, "total_discount", p.TotalDiscount)
		fieldMoney(e, "discount_per_unit", p.DiscountAmountPerUnit)
		fieldMoney(e, "total_price", p.TotalPrice)
		if v := q.Promo; v != nil && v.IsValid {
			e.FieldStart("promo")
			e.ObjStart()
			e.FieldStart("code")
			e.Str(v.Code)
			e.FieldStart("discount_percent")
			e.Str(v.DiscountPercent.String())
			e.ObjEnd()
		}
		if q.PromoError != "" {
			e.FieldStart("promo_error")
			e.Str(q.PromoError)
		}
		e.ObjEnd()
	})
}

// PlaceOrder places an order for the selection and returns it with 201.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	body, err := h.decodeQuoteBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.checkout.PlaceOrder(r.Context(), checkout.OrderRequest{
		EventID:   chi.URLParam(r, "eventID"),
		Selection: body.Selection,
		PromoCode: body.PromoCode,
		Email:     body.Email,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(o.ID)
		e.FieldStart("event_id")
		e.Str(o.EventID)
		e.FieldStart("email")
		e.Str(o.Email)
		e.FieldStart("lines")
		e.ArrStart()
		for _, l := range o.Lines {
			e.ObjStart()
			e.FieldStart("ticket_type_id")
			e.Str(l.TicketTypeID)
			e.FieldStart("quantity")
			e.Int(l.Quantity)
			fieldMoney(e, "unit_price", l.UnitPrice)
			fieldMoney(e, "discounted_unit_price", l.DiscountedUnitPrice)
			fieldMoney(e, "subtotal", l.Subtotal)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.FieldStart("quantity")
		e.Int(o.Quantity())
		fieldMoney(e, "total", o.Total)
		fieldMoney(e, "discount", o.Discount)
		if o.PromoCode != "" {
			e.FieldStart("promo_code")
			e.Str(o.PromoCode)
		}
		fieldTime(e, "created_at", o.CreatedAt)
		e.ObjEnd()
	})
}
