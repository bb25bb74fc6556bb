package promo

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCodes struct {
	codes []string
	err   error
}

func (s staticCodes) ListCodes(context.Context) ([]string, error) {
	return s.codes, s.err
}

type countingValidator struct {
	calls int
}

func (c *countingValidator) Validate(_ context.Context, code string, _ Scope) (*Validation, error) {
	c.calls++
	return &Validation{IsValid: true, DiscountPercent: decimal.NewFromInt(10), Code: Normalize(code)}, nil
}

func TestFilteredValidator_PassThroughBeforeLoad(t *testing.T) {
	next := &countingValidator{}
	f := NewFilteredValidator(next, FilterConfig{})

	assert.False(t, f.Loaded())

	_, err := f.Validate(context.Background(), "ANYTHING", Scope{})
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestFilteredValidator_RejectsUnknownWithoutLookup(t *testing.T) {
	next := &countingValidator{}
	f := NewFilteredValidator(next, FilterConfig{Capacity: 1000, FalsePositiveRate: 0.0001})

	n, err := f.Reload(context.Background(), staticCodes{codes: []string{"SAVE10", "vip25"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, f.Loaded())

	got, err := f.Validate(context.Background(), "save10", Scope{})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", got.Code)

	_, err = f.Validate(context.Background(), "VIP25", Scope{})
	require.NoError(t, err)

	_, err = f.Validate(context.Background(), "NOT-A-REAL-CODE", Scope{})
	require.ErrorIs(t, err, ErrUnknownCode)

	assert.Equal(t, 2, next.calls)
}

func TestFilteredValidator_ReloadPicksUpNewCodes(t *testing.T) {
	next := &countingValidator{}
	f := NewFilteredValidator(next, FilterConfig{Capacity: 1000, FalsePositiveRate: 0.0001})
	_, err := f.Reload(context.Background(), staticCodes{})
	require.NoError(t, err)
	assert.False(t, f.MayContain("FRESH"))

	n, err := f.Reload(context.Background(), staticCodes{codes: []string{"fresh"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.MayContain("FRESH"))
}

func TestFilteredValidator_EmptyCode(t *testing.T) {
	next := &countingValidator{}
	f := NewFilteredValidator(next, FilterConfig{})

	_, err := f.Validate(context.Background(), " ", Scope{})
	require.ErrorIs(t, err, ErrEmptyCode)
	assert.Zero(t, next.calls)
}

func TestFilteredValidator_ReloadError(t *testing.T) {
	f := NewFilteredValidator(&countingValidator{}, FilterConfig{})

	_, err := f.Reload(context.Background(), staticCodes{err: errors.New("db down")})
	require.Error(t, err)
	assert.False(t, f.Loaded())
}
