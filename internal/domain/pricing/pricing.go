// Package pricing computes checkout totals for a ticket selection.
//
// Compute is a pure function: it performs no I/O, holds no state and never
// fails, so it is safe to call on every selection change and from many
// goroutines at once. Amounts keep full decimal precision; round only for
// presentation with Display or Round.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

var hundred = decimal.NewFromInt(100)

// Selection maps a ticket type id to the requested quantity.
type Selection map[string]int

// Total returns the sum of positive quantities.
func (s Selection) Total() int {
	n := 0
	for _, qty := range s {
		if qty > 0 {
			n += qty
		}
	}
	return n
}

// LineItem is the priced result for one selected ticket type.
type LineItem struct {
	TicketTypeID        string
	TicketType          ticket.TicketType
	Quantity            int
	UnitPrice           decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	UnitDiscount        decimal.Decimal
	Subtotal            decimal.Decimal
}

// Result is the priced selection.
type Result struct {
	// Lines holds one entry per ticket type with a positive quantity, in the
	// order the ticket types were given.
	Lines         []LineItem
	TotalQuantity int
	TotalDiscount decimal.Decimal
	// DiscountAmountPerUnit is TotalDiscount spread evenly over every
	// selected unit.
	DiscountAmountPerUnit decimal.Decimal
	TotalPrice            decimal.Decimal
}

// Compute prices the selection against the ticket types. A nil or invalid
// validation applies no discount. Quantities that are absent, zero or
// negative exclude the ticket type; selection keys without a matching
// ticket type are ignored.
func Compute(types []ticket.TicketType, selection Selection, validation *promo.Validation) Result {
	pct := discountPercent(validation)
	factor := hundred.Sub(pct).Div(hundred)

	res := Result{
		Lines:                 make([]LineItem, 0, len(selection)),
		TotalDiscount:         decimal.Zero,
		DiscountAmountPerUnit: decimal.Zero,
		TotalPrice:            decimal.Zero,
	}

	for _, t := range types {
		qty := selection[t.ID]
		if qty <= 0 {
			continue
		}

		unit := t.UnitPrice
		if unit.IsNegative() {
			unit = decimal.Zero
		}
		discounted := unit
		if pct.IsPositive() {
			discounted = unit.Mul(factor)
		}
		unitDiscount := unit.Sub(discounted)
		q := decimal.NewFromInt(int64(qty))
		subtotal := discounted.Mul(q)

		res.Lines = append(res.Lines, LineItem{
			TicketTypeID:        t.ID,
			TicketType:          t,
			Quantity:            qty,
			UnitPrice:           unit,
			DiscountedUnitPrice: discounted,
			UnitDiscount:        unitDiscount,
			Subtotal:            subtotal,
		})
		res.TotalQuantity += qty
		res.TotalPrice = res.TotalPrice.Add(subtotal)
		res.TotalDiscount = res.TotalDiscount.Add(unitDiscount.Mul(q))
	}

	if res.TotalQuantity > 0 {
		res.DiscountAmountPerUnit = res.TotalDiscount.Div(decimal.NewFromInt(int64(res.TotalQuantity)))
	}
	return res
}

// Quantities returns the priced quantity per ticket type id.
func (r Result) Quantities() map[string]int {
	out := make(map[string]int, len(r.Lines))
	for _, l := range r.Lines {
		out[l.TicketTypeID] = l.Quantity
	}
	return out
}

// Round rounds an amount to cents for presentation.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Display formats an amount with exactly two decimal places.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// discountPercent returns the applicable percent clamped to [0, 100].
func discountPercent(v *promo.Validation) decimal.Decimal {
	if v == nil || !v.IsValid {
		return decimal.Zero
	}
	pct := v.DiscountPercent
	switch {
	case pct.IsNegative():
		return decimal.Zero
	case pct.GreaterThan(hundred):
		return hundred
	default:
		return pct
	}
}
