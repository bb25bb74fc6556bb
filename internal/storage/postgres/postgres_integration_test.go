//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arell305/hostlyapp/internal/domain/checkout"
	"github.com/arell305/hostlyapp/internal/domain/guest"
	"github.com/arell305/hostlyapp/internal/domain/promo"
	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("testdata/compose.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}
	defer func() {
		if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
			log.Printf("compose down: %v", err)
		}
	}()

	err = dc.
		WaitForService("postgres", wait.ForListeningPort("5432/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	pg, err := dc.ServiceContainer(ctx, "postgres")
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://hostly:hostly@%s:%s/hostly?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Migrations are idempotent.
	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations rerun: %v", err)
	}

	if err := seedFixture(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}

	return m.Run()
}

func seedFixture(ctx context.Context) error {
	catalog := NewCatalogRepository(testPool)
	if err := catalog.UpsertEvent(ctx, ticket.Event{
		ID: "evt-1", OrganizationID: "org-1", Name: "Launch Party",
		StartsAt: time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC),
	}); err != nil {
		return err
	}
	types := []ticket.TicketType{
		{ID: "evt-1-vip", EventID: "evt-1", Name: "VIP", UnitPrice: decimal.RequireFromString("120.00"), Capacity: 20},
		{
			ID: "evt-1-ga", EventID: "evt-1", Name: "GA", UnitPrice: decimal.RequireFromString("25.50"), Capacity: 200,
			SalesEndTime: time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC),
		},
	}
	for i, t := range types {
		if err := catalog.UpsertTicketType(ctx, t, i); err != nil {
			return err
		}
	}

	guests := NewGuestRepository(testPool)
	for _, g := range []guest.Entry{
		{ID: "g-1", EventID: "evt-1", Name: "Ada", PromoterID: "p-1"},
		{ID: "g-2", EventID: "evt-1", Name: "Grace"},
	} {
		if err := guests.Upsert(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(testPool)

	e, err := repo.Event(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", e.OrganizationID)

	_, err = repo.Event(ctx, "missing")
	require.ErrorIs(t, err, ticket.ErrEventNotFound)

	types, err := repo.TicketTypes(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "evt-1-vip", types[0].ID)
	assert.True(t, types[0].SalesEndTime.IsZero())
	assert.True(t, decimal.RequireFromString("25.5").Equal(types[1].UnitPrice))
	assert.False(t, types[1].SalesEndTime.IsZero())
}

func TestPromoRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPromoRepository(testPool)

	n, err := repo.InsertRules(ctx, []promo.Rule{
		{Code: "twice", OrganizationID: "org-1", DiscountPercent: decimal.NewFromInt(10), MaxUses: 2, Active: true},
		{Code: "EVENTONLY", OrganizationID: "org-1", EventID: "evt-1", DiscountPercent: decimal.NewFromInt(25), Active: true},
		{Code: "OFF", OrganizationID: "org-1", DiscountPercent: decimal.NewFromInt(5), Active: false},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.InsertRules(ctx, []promo.Rule{{Code: "TWICE", OrganizationID: "org-2", Active: true}})
	require.NoError(t, err)
	assert.Zero(t, n, "existing codes are skipped")

	rule, err := repo.FindByCode(ctx, "twice")
	require.NoError(t, err)
	assert.Equal(t, "TWICE", rule.Code)
	assert.Equal(t, "org-1", rule.OrganizationID)
	assert.Empty(t, rule.EventID)

	rule, err = repo.FindByCode(ctx, "EVENTONLY")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", rule.EventID)

	_, err = repo.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, promo.ErrUnknownCode)

	require.NoError(t, repo.Redeem(ctx, "TWICE"))
	require.NoError(t, repo.Redeem(ctx, "twice"))
	require.ErrorIs(t, repo.Redeem(ctx, "TWICE"), promo.ErrUsageLimitReached)
	require.ErrorIs(t, repo.Redeem(ctx, "NOPE"), promo.ErrUnknownCode)
	require.ErrorIs(t, repo.Redeem(ctx, "OFF"), promo.ErrUnknownCode)

	rule, err = repo.FindByCode(ctx, "TWICE")
	require.NoError(t, err)
	assert.Equal(t, 2, rule.Uses)

	require.NoError(t, repo.Refund(ctx, "twice"))
	require.NoError(t, repo.Redeem(ctx, "TWICE"), "refunded use can be redeemed again")
	require.NoError(t, repo.Refund(ctx, "EVENTONLY"))
	rule, err = repo.FindByCode(ctx, "EVENTONLY")
	require.NoError(t, err)
	assert.Zero(t, rule.Uses, "uses never go negative")
	require.ErrorIs(t, repo.Refund(ctx, "NOPE"), promo.ErrUnknownCode)

	codes, err := repo.ListCodes(ctx)
	require.NoError(t, err)
	assert.Contains(t, codes, "TWICE")
	assert.NotContains(t, codes, "OFF")

	existing, err := repo.ExistingCodes(ctx, []string{"TWICE", "NEW1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"TWICE": {}}, existing)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	o := &checkout.Order{
		ID: "order-1", EventID: "evt-1", OrganizationID: "org-1", Email: "fan@example.com",
		Lines: []checkout.OrderLine{{
			TicketTypeID: "evt-1-vip", Quantity: 2,
			UnitPrice:           decimal.RequireFromString("120"),
			DiscountedUnitPrice: decimal.RequireFromString("108"),
			Subtotal:            decimal.RequireFromString("216"),
		}},
		Total:     decimal.RequireFromString("216"),
		Discount:  decimal.RequireFromString("24"),
		PromoCode: "SAVE10",
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, o))

	orders, err := repo.ListByEvent(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	got := orders[0]
	assert.Equal(t, "fan@example.com", got.Email)
	assert.True(t, o.Total.Equal(got.Total))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(108).Equal(got.Lines[0].DiscountedUnitPrice))
	assert.True(t, decimal.NewFromInt(216).Equal(got.Lines[0].Subtotal))

	sold, err := repo.SoldByTicketType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sold["evt-1-vip"])
}

func TestGuestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGuestRepository(testPool)
	at := time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC)

	e, err := repo.CheckIn(ctx, "evt-1", "g-1", at)
	require.NoError(t, err)
	require.NotNil(t, e.CheckedInAt)
	assert.True(t, at.Equal(*e.CheckedInAt))

	e, err = repo.CheckIn(ctx, "evt-1", "g-1", at.Add(time.Hour))
	require.ErrorIs(t, err, guest.ErrAlreadyCheckedIn)
	assert.True(t, at.Equal(*e.CheckedInAt))

	_, err = repo.CheckIn(ctx, "evt-1", "missing", at)
	require.ErrorIs(t, err, guest.ErrNotFound)

	list, err := repo.ListByEvent(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ada", list[0].Name)
	assert.True(t, list[0].CheckedIn())
	assert.False(t, list[1].CheckedIn())
}
