package promo

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// CodeSource lists every stored promo code.
type CodeSource interface {
	ListCodes(ctx context.Context) ([]string, error)
}

// FilterConfig sizes the bloom filter.
type FilterConfig struct {
	// Capacity is the expected number of codes.
	Capacity uint
	// FalsePositiveRate is the target probability of passing an unknown code
	// through to the underlying validator.
	FalsePositiveRate float64
}

// FilteredValidator screens codes with a bloom filter before delegating to
// the next Validator. A code the filter has never seen is rejected with
// ErrUnknownCode without touching storage.
type FilteredValidator struct {
	next Validator
	cfg  FilterConfig

	mu     sync.RWMutex
	filter *bloom.BloomFilter
	loaded bool
}

var _ Validator = (*FilteredValidator)(nil)

// NewFilteredValidator wraps next. Until the first Reload every code is
// passed through.
func NewFilteredValidator(next Validator, cfg FilterConfig) *FilteredValidator {
	if cfg.Capacity == 0 {
		cfg.Capacity = 100_000
	}
	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		cfg.FalsePositiveRate = 0.001
	}
	return &FilteredValidator{next: next, cfg: cfg}
}

// Reload rebuilds the filter from source.
func (f *FilteredValidator) Reload(ctx context.Context, source CodeSource) (int, error) {
	codes, err := source.ListCodes(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list promo codes")
	}

	filter := bloom.NewWithEstimates(max(f.cfg.Capacity, uint(len(codes))), f.cfg.FalsePositiveRate)
	for _, code := range codes {
		filter.AddString(Normalize(code))
	}

	f.mu.Lock()
	f.filter = filter
	f.loaded = true
	f.mu.Unlock()

	return len(codes), nil
}

// Loaded reports whether the filter has been populated at least once.
func (f *FilteredValidator) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loaded
}

// MayContain reports whether the code could be stored.
func (f *FilteredValidator) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.filter == nil {
		return true
	}
	return f.filter.TestString(Normalize(code))
}

// Validate implements Validator.
func (f *FilteredValidator) Validate(ctx context.Context, code string, scope Scope) (*Validation, error) {
	if Normalize(code) == "" {
		return nil, ErrEmptyCode
	}
	if !f.MayContain(code) {
		return nil, ErrUnknownCode
	}
	return f.next.Validate(ctx, code, scope)
}
