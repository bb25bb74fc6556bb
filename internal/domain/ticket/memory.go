package ticket

import (
	"context"
	"sync"
)

var _ Inventory = (*MemoryInventory)(nil)

// MemoryInventory is an in-process Inventory. It is used when no shared
// counter store is configured and in tests.
type MemoryInventory struct {
	mu   sync.Mutex
	sold map[string]int
}

// NewMemoryInventory creates an empty MemoryInventory.
func NewMemoryInventory() *MemoryInventory {
	return &MemoryInventory{sold: make(map[string]int)}
}

// Sold implements Inventory.
func (m *MemoryInventory) Sold(_ context.Context, ids []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(ids))
	for _, id := range ids {
		out[id] = m.sold[id]
	}
	return out, nil
}

// Reserve implements Inventory.
func (m *MemoryInventory) Reserve(_ context.Context, capacities, quantities map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, qty := range quantities {
		remaining := capacities[id] - m.sold[id]
		if qty > remaining {
			return &InsufficientInventoryError{
				TicketTypeID: id,
				Requested:    qty,
				Remaining:    max(remaining, 0),
			}
		}
	}
	for id, qty := range quantities {
		m.sold[id] += qty
	}
	return nil
}

// Release implements Inventory.
func (m *MemoryInventory) Release(_ context.Context, quantities map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, qty := range quantities {
		m.sold[id] = max(m.sold[id]-qty, 0)
	}
	return nil
}

// Load replaces the sold counters, typically with totals recovered from
// persisted orders at startup.
func (m *MemoryInventory) Load(sold map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sold = make(map[string]int, len(sold))
	for id, n := range sold {
		m.sold[id] = n
	}
}
