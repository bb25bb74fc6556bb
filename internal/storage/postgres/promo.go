package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arell305/hostlyapp/internal/domain/promo"
)

const (
	getPromoByCodeSQL = `SELECT code, organization_id, COALESCE(event_id, ''), discount_percent, description,
		valid_from, valid_until, max_uses, uses, active
		FROM promo_codes WHERE code = UPPER($1)`

	redeemPromoSQL = `UPDATE promo_codes SET uses = uses + 1
		WHERE code = UPPER($1) AND active AND (max_uses = 0 OR uses < max_uses)
		RETURNING uses`

	refundPromoSQL = `UPDATE promo_codes SET uses = GREATEST(uses - 1, 0) WHERE code = UPPER($1)`

	promoExistsSQL = `SELECT EXISTS (SELECT 1 FROM promo_codes WHERE code = UPPER($1) AND active)`

	listActivePromoCodesSQL = `SELECT code FROM promo_codes WHERE active`

	existingPromoCodesSQL = `SELECT code FROM promo_codes WHERE code = ANY($1)`

	insertPromoSQL = `INSERT INTO promo_codes
		(code, organization_id, event_id, discount_percent, description, valid_from, valid_until, max_uses, active)
		VALUES (UPPER($1), $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO NOTHING`

	upsertPromoSQL = `INSERT INTO promo_codes
		(code, organization_id, event_id, discount_percent, description, valid_from, valid_until, max_uses, active)
		VALUES (UPPER($1), $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			event_id = EXCLUDED.event_id,
			discount_percent = EXCLUDED.discount_percent,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses,
			active = EXCLUDED.active`
)

var (
	_ promo.Repository = (*PromoRepository)(nil)
	_ promo.CodeSource = (*PromoRepository)(nil)
)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo rule by its code (case-insensitive). Inactive
// rules are returned as stored; the caller decides what they mean.
// Returns promo.ErrUnknownCode when no rule exists.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Rule, error) {
	rows, err := r.pool.Query(ctx, getPromoByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanPromoRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrUnknownCode
		}
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	return &rule, nil
}

// Redeem atomically consumes one use of the code.
func (r *PromoRepository) Redeem(ctx context.Context, code string) error {
	var uses int32
	err := r.pool.QueryRow(ctx, redeemPromoSQL, code).Scan(&uses)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("redeeming promo code %q: %w", code, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, promoExistsSQL, code).Scan(&exists); err != nil {
		return fmt.Errorf("checking promo code %q: %w", code, err)
	}
	if !exists {
		return promo.ErrUnknownCode
	}
	return promo.ErrUsageLimitReached
}

// Refund gives back one use of the code.
func (r *PromoRepository) Refund(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, refundPromoSQL, code)
	if err != nil {
		return fmt.Errorf("refunding promo code %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrUnknownCode
	}
	return nil
}

// ListCodes returns every active code. It feeds the validation filter.
func (r *PromoRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listActivePromoCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promo codes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ExistingCodes returns the subset of codes that are already stored.
func (r *PromoRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, existingPromoCodesSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("checking existing promo codes: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("checking existing promo codes: %w", err)
	}
	out := make(map[string]struct{}, len(found))
	for _, c := range found {
		out[c] = struct{}{}
	}
	return out, nil
}

// InsertRules inserts rules in a single batch, skipping codes that already
// exist. It returns the number of rows inserted.
func (r *PromoRepository) InsertRules(ctx context.Context, rules []promo.Rule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, rule := range rules {
		b.Queue(insertPromoSQL, promoArgs(rule)...)
	}

	br := r.pool.SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	inserted := 0
	for _, rule := range rules {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting promo code %q: %w", rule.Code, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// UpsertRule inserts or replaces a rule, keeping its recorded uses.
func (r *PromoRepository) UpsertRule(ctx context.Context, rule promo.Rule) error {
	if _, err := r.pool.Exec(ctx, upsertPromoSQL, promoArgs(rule)...); err != nil {
		return fmt.Errorf("upserting promo code %q: %w", rule.Code, err)
	}
	return nil
}

func promoArgs(rule promo.Rule) []any {
	return []any{
		rule.Code, rule.OrganizationID, rule.EventID, rule.DiscountPercent, rule.Description,
		rule.ValidFrom, rule.ValidUntil, rule.MaxUses, rule.Active,
	}
}

func scanPromoRule(row pgx.CollectableRow) (promo.Rule, error) {
	var (
		rule       promo.Rule
		validFrom  *time.Time
		validUntil *time.Time
		maxUses    int32
		uses       int32
	)
	err := row.Scan(
		&rule.Code, &rule.OrganizationID, &rule.EventID, &rule.DiscountPercent, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses, &rule.Active,
	)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
