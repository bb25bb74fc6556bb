//go:build integration

package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arell305/hostlyapp/internal/domain/ticket"
)

var testClient *redis.Client

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("redis container: %v", err)
	}
	defer func() {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("terminate: %v", err)
		}
	}()

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		log.Fatalf("endpoint: %v", err)
	}
	testClient, err = NewClient(fmt.Sprintf("redis://%s/0", endpoint))
	if err != nil {
		log.Fatalf("client: %v", err)
	}
	defer func() { _ = testClient.Close() }()

	return m.Run()
}

func newTestInventory(t *testing.T) *Inventory {
	t.Helper()
	inv := NewInventory(testClient)
	inv.prefix = fmt.Sprintf("test:%s:", t.Name())
	return inv
}

func TestInventory_ReserveAllOrNothing(t *testing.T) {
	ctx := context.Background()
	inv := newTestInventory(t)
	capacities := map[string]int{"ga": 3, "vip": 1}

	require.NoError(t, inv.Reserve(ctx, capacities, map[string]int{"ga": 2}))

	err := inv.Reserve(ctx, capacities, map[string]int{"ga": 1, "vip": 2})
	var insufficient *ticket.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "vip", insufficient.TicketTypeID)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Remaining)

	sold, err := inv.Sold(ctx, []string{"ga", "vip", "none"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ga": 2, "vip": 0, "none": 0}, sold)
}

func TestInventory_ReleaseFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	inv := newTestInventory(t)

	require.NoError(t, inv.Reserve(ctx, map[string]int{"ga": 5}, map[string]int{"ga": 3}))
	require.NoError(t, inv.Release(ctx, map[string]int{"ga": 2}))
	require.NoError(t, inv.Release(ctx, map[string]int{"ga": 9}))

	sold, err := inv.Sold(ctx, []string{"ga"})
	require.NoError(t, err)
	assert.Zero(t, sold["ga"])
}

func TestInventory_Load(t *testing.T) {
	ctx := context.Background()
	inv := newTestInventory(t)

	require.NoError(t, inv.Load(ctx, map[string]int{"ga": 4}))

	err := inv.Reserve(ctx, map[string]int{"ga": 5}, map[string]int{"ga": 2})
	var insufficient *ticket.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Remaining)

	// A second seed does not overwrite live counters.
	require.NoError(t, inv.Load(ctx, map[string]int{"ga": 0}))
	sold, err := inv.Sold(ctx, []string{"ga"})
	require.NoError(t, err)
	assert.Equal(t, 4, sold["ga"])
}
