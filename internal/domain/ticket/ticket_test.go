package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketType_OnSale(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want bool
	}{
		{name: "no end time", end: time.Time{}, want: true},
		{name: "ends in future", end: now.Add(time.Hour), want: true},
		{name: "ended", end: now.Add(-time.Hour), want: false},
		{name: "ends exactly now", end: now, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := TicketType{ID: "ga", UnitPrice: decimal.NewFromInt(10), SalesEndTime: tt.end}
			assert.Equal(t, tt.want, typ.OnSale(now))
		})
	}
}

func TestRemaining(t *testing.T) {
	types := []TicketType{
		{ID: "ga", Capacity: 100},
		{ID: "vip", Capacity: 10},
		{ID: "oversold", Capacity: 5},
	}
	sold := map[string]int{"ga": 40, "oversold": 7}

	got := Remaining(types, sold)

	assert.Equal(t, map[string]int{"ga": 60, "vip": 10, "oversold": 0}, got)
}

func TestMemoryInventory_ReserveAllOrNothing(t *testing.T) {
	ctx := context.Background()
	inv := NewMemoryInventory()
	capacities := map[string]int{"ga": 3, "vip": 1}

	require.NoError(t, inv.Reserve(ctx, capacities, map[string]int{"ga": 2}))

	err := inv.Reserve(ctx, capacities, map[string]int{"ga": 1, "vip": 2})
	var insufficient *InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "vip", insufficient.TicketTypeID)
	assert.Equal(t, 1, insufficient.Remaining)

	sold, err := inv.Sold(ctx, []string{"ga", "vip"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ga": 2, "vip": 0}, sold)
}

func TestMemoryInventory_Release(t *testing.T) {
	ctx := context.Background()
	inv := NewMemoryInventory()
	capacities := map[string]int{"ga": 3}

	require.NoError(t, inv.Reserve(ctx, capacities, map[string]int{"ga": 3}))
	require.NoError(t, inv.Release(ctx, map[string]int{"ga": 2}))
	require.NoError(t, inv.Release(ctx, map[string]int{"ga": 5}))

	sold, err := inv.Sold(ctx, []string{"ga"})
	require.NoError(t, err)
	assert.Equal(t, 0, sold["ga"])
}

func TestMemoryInventory_Load(t *testing.T) {
	ctx := context.Background()
	inv := NewMemoryInventory()
	inv.Load(map[string]int{"ga": 4})

	sold, err := inv.Sold(ctx, []string{"ga", "vip"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ga": 4, "vip": 0}, sold)

	err = inv.Reserve(ctx, map[string]int{"ga": 5}, map[string]int{"ga": 2})
	var insufficient *InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
}
