package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arell305/hostlyapp/internal/domain/pricing"
	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

// --- Mock implementations ---

type mockCatalog struct {
	event    *ticket.Event
	types    []ticket.TicketType
	eventErr error
	typesErr error
}

func (m *mockCatalog) Event(_ context.Context, id string) (*ticket.Event, error) {
	if m.eventErr != nil {
		return nil, m.eventErr
	}
	if m.event == nil || m.event.ID != id {
		return nil, ticket.ErrEventNotFound
	}
	e := *m.event
	return &e, nil
}

func (m *mockCatalog) TicketTypes(_ context.Context, _ string) ([]ticket.TicketType, error) {
	return m.types, m.typesErr
}

type mockRedeemer struct {
	redeemed  []string
	refunded  []string
	err       error
	refundErr error
}

func (m *mockRedeemer) FindByCode(context.Context, string) (*promo.Rule, error) {
	return nil, promo.ErrUnknownCode
}

func (m *mockRedeemer) Redeem(_ context.Context, code string) error {
	if m.err != nil {
		return m.err
	}
	m.redeemed = append(m.redeemed, code)
	return nil
}

func (m *mockRedeemer) Refund(_ context.Context, code string) error {
	if m.refundErr != nil {
		return m.refundErr
	}
	m.refunded = append(m.refunded, code)
	return nil
}

type mockOrderRepo struct {
	created []*Order
	err     error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) ListByEvent(context.Context, string) ([]Order, error) {
	out := make([]Order, len(m.created))
	for i, o := range m.created {
		out[i] = *o
	}
	return out, nil
}

type mockPublisher struct {
	published []*Order
	err       error
}

func (m *mockPublisher) PublishOrderPlaced(_ context.Context, o *Order) error {
	m.published = append(m.published, o)
	return m.err
}

// --- Helpers ---

type fixture struct {
	svc       *Service
	catalog   *mockCatalog
	inventory *ticket.MemoryInventory
	validator *stubValidator
	redeemer  *mockRedeemer
	orders    *mockOrderRepo
	publisher *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ev := testEvent
	f := &fixture{
		catalog:   &mockCatalog{event: &ev, types: testTypes()},
		inventory: ticket.NewMemoryInventory(),
		validator: &stubValidator{},
		redeemer:  &mockRedeemer{},
		orders:    &mockOrderRepo{},
		publisher: &mockPublisher{},
	}
	f.svc = NewService(f.catalog, f.inventory, f.validator, f.redeemer, f.orders, f.publisher)
	f.svc.now = func() time.Time { return time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) sell(t *testing.T, id string, qty int) {
	t.Helper()
	require.NoError(t, f.inventory.Reserve(context.Background(), map[string]int{id: 1000}, map[string]int{id: qty}))
}

func (f *fixture) sold(t *testing.T) map[string]int {
	t.Helper()
	sold, err := f.inventory.Sold(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	return sold
}

func save10() *promo.Validation {
	return &promo.Validation{IsValid: true, DiscountPercent: decimal.NewFromInt(10), Code: "SAVE10"}
}

// --- Quote ---

func TestQuote_WithPromo(t *testing.T) {
	f := newFixture(t)
	f.validator.v = save10()

	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 2, "B": 3},
		PromoCode: "save10",
	})

	require.NoError(t, err)
	assert.Empty(t, q.PromoError)
	require.NotNil(t, q.Promo)
	assert.Equal(t, "SAVE10", q.Promo.Code)
	assert.True(t, decimal.NewFromInt(144).Equal(q.Pricing.TotalPrice))
	assert.True(t, decimal.NewFromInt(16).Equal(q.Pricing.TotalDiscount))
	assert.Equal(t, "org-1", q.Event.OrganizationID)
}

func TestQuote_ClampsToRemaining(t *testing.T) {
	f := newFixture(t)
	f.sell(t, "B", 98)

	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"B": 5},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, q.Remaining["B"])
	assert.Equal(t, 2, q.Pricing.TotalQuantity)
	assert.True(t, decimal.NewFromInt(40).Equal(q.Pricing.TotalPrice))
}

func TestQuote_RejectedPromoReportedAsText(t *testing.T) {
	f := newFixture(t)
	f.validator.err = promo.ErrCodeExpired

	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1},
		PromoCode: "OLD",
	})

	require.NoError(t, err)
	assert.Nil(t, q.Promo)
	assert.Equal(t, "This promo code has expired.", q.PromoError)
	assert.True(t, decimal.NewFromInt(50).Equal(q.Pricing.TotalPrice))
}

func TestQuote_PromoInfrastructureError(t *testing.T) {
	f := newFixture(t)
	f.validator.err = errors.New("connection reset")

	_, err := f.svc.Quote(context.Background(), QuoteRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1},
		PromoCode: "ANY",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate promo code")
}

func TestQuote_EventNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Quote(context.Background(), QuoteRequest{EventID: "missing"})

	require.ErrorIs(t, err, ticket.ErrEventNotFound)
}

func TestQuote_UnknownTicketType(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Quote(context.Background(), QuoteRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"Z": 1},
	})

	require.ErrorIs(t, err, ticket.ErrUnknownTicketType)
}

func TestQuote_IgnoresZeroQuantities(t *testing.T) {
	f := newFixture(t)

	q, err := f.svc.Quote(context.Background(), QuoteRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1, "ghost": 0, "B": -2},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, q.Pricing.TotalQuantity)
	require.Len(t, q.Pricing.Lines, 1)
	assert.Equal(t, "A", q.Pricing.Lines[0].TicketTypeID)
}

func TestPlaceOrder_IgnoresZeroQuantities(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1, "ghost": 0},
		Email:     "fan@example.com",
	})

	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 1, f.sold(t)["A"])
}

func TestQuote_CatalogError(t *testing.T) {
	f := newFixture(t)
	f.catalog.typesErr = errors.New("db down")

	_, err := f.svc.Quote(context.Background(), QuoteRequest{EventID: "evt-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get ticket types")
}

// --- PlaceOrder ---

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)
	f.validator.v = save10()

	o, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 2, "B": 3},
		PromoCode: "save10",
		Email:     " fan@example.com ",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "fan@example.com", o.Email)
	assert.Equal(t, "org-1", o.OrganizationID)
	assert.Equal(t, "SAVE10", o.PromoCode)
	assert.True(t, decimal.NewFromInt(144).Equal(o.Total))
	assert.True(t, decimal.NewFromInt(16).Equal(o.Discount))
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "A", o.Lines[0].TicketTypeID)
	assert.Equal(t, 5, o.Quantity())

	assert.Equal(t, []string{"SAVE10"}, f.redeemer.redeemed)
	assert.Len(t, f.orders.created, 1)
	assert.Len(t, f.publisher.published, 1)
	assert.Equal(t, map[string]int{"A": 2, "B": 3, "C": 0}, f.sold(t))
}

func TestPlaceOrder_TotalsReconcileWithLines(t *testing.T) {
	f := newFixture(t)
	f.validator.v = &promo.Validation{IsValid: true, DiscountPercent: decimal.RequireFromString("33.33"), Code: "THIRD"}

	o, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1, "B": 2},
		PromoCode: "THIRD",
		Email:     "fan@example.com",
	})

	require.NoError(t, err)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "33.34", o.Lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, "26.67", o.Lines[1].Subtotal.StringFixed(2))
	assert.Equal(t, "60.01", o.Total.StringFixed(2))
	assert.Equal(t, "29.99", o.Discount.StringFixed(2))
	assert.True(t, o.Total.Add(o.Discount).Equal(decimal.NewFromInt(90)))
}

func TestPlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     OrderRequest
		wantErr error
	}{
		{
			name:    "missing email",
			req:     OrderRequest{EventID: "evt-1", Selection: pricing.Selection{"A": 1}},
			wantErr: ErrEmailRequired,
		},
		{
			name:    "empty selection",
			req:     OrderRequest{EventID: "evt-1", Email: "a@b.c"},
			wantErr: ErrEmptySelection,
		},
		{
			name:    "only zero quantities",
			req:     OrderRequest{EventID: "evt-1", Email: "a@b.c", Selection: pricing.Selection{"A": 0, "B": -2}},
			wantErr: ErrEmptySelection,
		},
		{
			name:    "sales ended",
			req:     OrderRequest{EventID: "evt-1", Email: "a@b.c", Selection: pricing.Selection{"C": 1}},
			wantErr: ticket.ErrSalesEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.PlaceOrder(context.Background(), tt.req)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.orders.created)
		})
	}
}

func TestPlaceOrder_InsufficientInventory(t *testing.T) {
	f := newFixture(t)
	f.sell(t, "A", 99)

	_, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 2},
		Email:     "fan@example.com",
	})

	var invErr *ticket.InsufficientInventoryError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "A", invErr.TicketTypeID)
	assert.Equal(t, 2, invErr.Requested)
	assert.Equal(t, 1, invErr.Remaining)
	assert.Equal(t, 99, f.sold(t)["A"])
}

func TestPlaceOrder_InvalidPromo(t *testing.T) {
	f := newFixture(t)
	f.validator.err = promo.ErrUsageLimitReached

	_, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1},
		PromoCode: "USED",
		Email:     "fan@example.com",
	})

	require.ErrorIs(t, err, promo.ErrUsageLimitReached)
	assert.Zero(t, f.sold(t)["A"])
}

func TestPlaceOrder_RedeemFailureReleases(t *testing.T) {
	f := newFixture(t)
	f.validator.v = save10()
	f.redeemer.err = promo.ErrUsageLimitReached

	_, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 3},
		PromoCode: "SAVE10",
		Email:     "fan@example.com",
	})

	require.ErrorIs(t, err, promo.ErrUsageLimitReached)
	assert.Zero(t, f.sold(t)["A"])
	assert.Empty(t, f.orders.created)
}

func TestPlaceOrder_CreateFailureReleases(t *testing.T) {
	f := newFixture(t)
	f.orders.err = errors.New("db write failed")

	_, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"B": 2},
		Email:     "fan@example.com",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Zero(t, f.sold(t)["B"])
	assert.Empty(t, f.publisher.published)
	assert.Empty(t, f.redeemer.redeemed)
	assert.Empty(t, f.redeemer.refunded)
}

func TestPlaceOrder_CreateFailureRefundsPromo(t *testing.T) {
	f := newFixture(t)
	f.validator.v = save10()
	f.orders.err = errors.New("db write failed")

	_, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1},
		PromoCode: "SAVE10",
		Email:     "fan@example.com",
	})

	require.Error(t, err)
	assert.Equal(t, []string{"SAVE10"}, f.redeemer.redeemed)
	assert.Equal(t, []string{"SAVE10"}, f.redeemer.refunded)
	assert.Zero(t, f.sold(t)["A"])
}

func TestPlaceOrder_RefundFailureStillReturnsCreateError(t *testing.T) {
	f := newFixture(t)
	f.validator.v = save10()
	f.orders.err = errors.New("db write failed")
	f.redeemer.refundErr = errors.New("db still down")

	_, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1},
		PromoCode: "SAVE10",
		Email:     "fan@example.com",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Zero(t, f.sold(t)["A"])
}

func TestPlaceOrder_PublishFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker unavailable")

	o, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1},
		Email:     "fan@example.com",
	})

	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Len(t, f.orders.created, 1)
	assert.Equal(t, 1, f.sold(t)["A"])
}

func TestPlaceOrder_NoPromoSkipsRedeem(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(context.Background(), OrderRequest{
		EventID:   "evt-1",
		Selection: pricing.Selection{"A": 1},
		Email:     "fan@example.com",
	})

	require.NoError(t, err)
	assert.Empty(t, o.PromoCode)
	assert.Empty(t, f.redeemer.redeemed)
	assert.Empty(t, f.validator.calls)
}

func TestPromoMessage(t *testing.T) {
	for _, err := range []error{
		promo.ErrEmptyCode,
		promo.ErrUnknownCode,
		promo.ErrCodeExpired,
		promo.ErrUsageLimitReached,
		promo.ErrNotApplicable,
	} {
		msg, ok := PromoMessage(errors.Wrap(err, "validate"))
		assert.True(t, ok, err.Error())
		assert.NotEmpty(t, msg)
	}

	_, ok := PromoMessage(errors.New("timeout"))
	assert.False(t, ok)
}
