package guest

import (
	"context"
	"sync"
	"time"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-process Repository used in tests and local runs.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryRepository creates a repository holding the given entries.
func NewMemoryRepository(entries ...Entry) *MemoryRepository {
	return &MemoryRepository{entries: append([]Entry(nil), entries...)}
}

// ListByEvent implements Repository.
func (m *MemoryRepository) ListByEvent(_ context.Context, eventID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

// CheckIn implements Repository.
func (m *MemoryRepository) CheckIn(_ context.Context, eventID, guestID string, at time.Time) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		e := &m.entries[i]
		if e.ID != guestID || e.EventID != eventID {
			continue
		}
		if e.CheckedInAt != nil {
			out := *e
			return &out, ErrAlreadyCheckedIn
		}
		e.CheckedInAt = &at
		out := *e
		return &out, nil
	}
	return nil, ErrNotFound
}
