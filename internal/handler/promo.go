package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/promo"
)

// ValidatePromoCode checks a code against the event without consuming a
// use. Rejections are a 200 with valid=false and a purchaser-facing message.
func (h *Handler) ValidatePromoCode(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var code string
	if err := decodeObject(data, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = optString(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	event, err := h.catalog.Event(ctx, chi.URLParam(r, "eventID"))
	if err != nil {
		fail(w, r, err)
		return
	}

	v, err := h.promos.Validate(ctx, code, promo.Scope{
		OrganizationID: event.OrganizationID,
		EventID:        event.ID,
	})
	if err != nil {
		msg, ok := checkout.PromoMessage(err)
		if !ok {
			fail(w, r, errors.Wrap(err, "validate promo code"))
			return
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("valid")
			e.Bool(false)
			e.FieldStart("message")
			e.Str(msg)
			e.ObjEnd()
		})
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("valid")
		e.Bool(v.IsValid)
		e.FieldStart("code")
		e.Str(v.Code)
		e.FieldStart("discount_percent")
		e.Str(v.DiscountPercent.String())
		e.ObjEnd()
	})
}
