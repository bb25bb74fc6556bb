package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
)

func TestOrderLinesCodec(t *testing.T) {
	lines := []checkout.OrderLine{{
		TicketTypeID:        "ga",
		Quantity:            1,
		UnitPrice:           decimal.RequireFromString("50"),
		DiscountedUnitPrice: decimal.RequireFromString("33.335"),
		Subtotal:            decimal.RequireFromString("33.34"),
	}}

	got, err := decodeLines(encodeLines(lines))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "33.335", got[0].DiscountedUnitPrice.String())
	assert.Equal(t, "33.34", got[0].Subtotal.String())
}

func TestDecodeLines_DerivesMissingSubtotal(t *testing.T) {
	got, err := decodeLines([]byte(`[
		{"ticket_type_id":"early","quantity":2,"unit_price":"20","discounted_unit_price":"13.334"}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "26.67", got[0].Subtotal.StringFixed(2))
}
