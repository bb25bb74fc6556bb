package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/arell305/hostlyapp/internal/domain/pricing"
)

// errMalformed marks request bodies that cannot be decoded.
var errMalformed = errors.New("malformed request")

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		return nil, errors.Wrap(errMalformed, err.Error())
	}
	if int64(len(data)) > h.maxBody {
		return nil, errors.Wrap(errMalformed, "body too large")
	}
	if len(data) == 0 {
		return nil, errors.Wrap(errMalformed, "empty body")
	}
	return data, nil
}

// decodeObject decodes a JSON object body, calling field for every key.
func decodeObject(data []byte, field func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return errors.Wrap(errMalformed, "body must be a JSON object")
	}
	if err := d.Obj(field); err != nil {
		return errors.Wrap(errMalformed, err.Error())
	}
	return nil
}

// optString decodes a string that may be null.
func optString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeSelection decodes {"<ticket type id>": quantity, ...}.
func decodeSelection(d *jx.Decoder) (pricing.Selection, error) {
	sel := pricing.Selection{}
	if d.Next() == jx.Null {
		return sel, d.Null()
	}
	err := d.Obj(func(d *jx.Decoder, id string) error {
		qty, err := d.Int()
		if err != nil {
			return errors.Wrapf(err, "quantity for %q", id)
		}
		if qty < 0 {
			return errors.Errorf("quantity for %q is negative", id)
		}
		sel[id] = qty
		return nil
	})
	return sel, err
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func fieldMoney(e *jx.Encoder, name string, d decimal.Decimal) {
	e.FieldStart(name)
	e.Str(pricing.Display(d))
}

func fieldTime(e *jx.Encoder, name string, t time.Time) {
	e.FieldStart(name)
	e.Str(t.UTC().Format(time.RFC3339))
}
