package guest

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a guest list entry does not exist.
	ErrNotFound = errors.New("guest not found")
	// ErrAlreadyCheckedIn is returned when checking in a guest twice.
	ErrAlreadyCheckedIn = errors.New("guest already checked in")
)

// Entry is a name on an event's guest list, optionally attributed to the
// promoter who added it.
type Entry struct {
	ID         string
	EventID    string
	Name       string
	PromoterID string
	// CheckedInAt is nil until the guest arrives.
	CheckedInAt *time.Time
}

// CheckedIn reports whether the guest has arrived.
func (e Entry) CheckedIn() bool { return e.CheckedInAt != nil }

// Repository defines persistence operations for guest list entries.
type Repository interface {
	ListByEvent(ctx context.Context, eventID string) ([]Entry, error)
	// CheckIn marks the guest as arrived at the given instant. It returns
	// ErrAlreadyCheckedIn together with the stored entry when the guest was
	// checked in before, leaving the original timestamp untouched.
	CheckIn(ctx context.Context, eventID, guestID string, at time.Time) (*Entry, error)
}
