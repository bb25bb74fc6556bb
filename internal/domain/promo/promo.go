package promo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCode is returned when the submitted code is blank.
	ErrEmptyCode = errors.New("promo code is empty")
	// ErrUnknownCode is returned when no active rule exists for the code.
	ErrUnknownCode = errors.New("unknown promo code")
	// ErrCodeExpired is returned when a code is outside its valid time window.
	ErrCodeExpired = errors.New("promo code expired")
	// ErrUsageLimitReached is returned when a code has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
	// ErrNotApplicable is returned when a code belongs to another organization
	// or is restricted to a different event.
	ErrNotApplicable = errors.New("promo code not applicable to this event")
)

// Scope identifies where a code is being redeemed.
type Scope struct {
	OrganizationID string
	EventID        string
}

// Rule is the stored definition of a promo code.
type Rule struct {
	Code           string
	OrganizationID string
	// EventID restricts the code to a single event when non-empty.
	EventID         string
	DiscountPercent decimal.Decimal
	Description     string
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	// MaxUses of zero means unlimited.
	MaxUses int
	Uses    int
	Active  bool
}

// Validation is the outcome of validating a code. The zero value means no
// promo is applied.
type Validation struct {
	IsValid         bool
	DiscountPercent decimal.Decimal
	Code            string
}

// Repository provides lookup and mutation of promo rules.
type Repository interface {
	// FindByCode returns the rule for a normalized code, or ErrUnknownCode.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// Redeem consumes one use of the code. It returns ErrUsageLimitReached
	// when the code has no uses left.
	Redeem(ctx context.Context, code string) error
	// Refund gives back one use consumed by Redeem. Uses never drop below
	// zero.
	Refund(ctx context.Context, code string) error
}

// Normalize trims surrounding whitespace and upper-cases a user-supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check validates a rule against a scope at the given instant.
func Check(rule *Rule, scope Scope, now time.Time) error {
	if !rule.Active {
		return ErrUnknownCode
	}
	if rule.OrganizationID != scope.OrganizationID {
		return ErrNotApplicable
	}
	if rule.EventID != "" && rule.EventID != scope.EventID {
		return ErrNotApplicable
	}
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return ErrCodeExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return ErrCodeExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return ErrUsageLimitReached
	}
	return nil
}
