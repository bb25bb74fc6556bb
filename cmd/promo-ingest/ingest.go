package main

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arell305/hostlyapp/internal/domain/promo"
)

const (
	minCodeLen    = 4
	maxCodeLen    = 32
	progressEvery = 1_000_000
)

// defaults is applied to every line that does not override it.
type defaults struct {
	OrganizationID  string
	EventID         string
	DiscountPercent decimal.Decimal
	MaxUses         int
	Description     string
	ValidFrom       *time.Time
	ValidUntil      *time.Time
}

// parseLine parses "CODE[,DISCOUNT_PERCENT[,MAX_USES]]". Blank lines and
// lines starting with '#' yield ok=false and no error.
func parseLine(line string, d defaults) (rule promo.Rule, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule, false, nil
	}
	fields := strings.Split(line, ",")
	if len(fields) > 3 {
		return rule, false, errors.Errorf("too many fields in %q", line)
	}

	code := promo.Normalize(fields[0])
	if err := checkCode(code); err != nil {
		return rule, false, err
	}
	rule = promo.Rule{
		Code:            code,
		OrganizationID:  d.OrganizationID,
		EventID:         d.EventID,
		DiscountPercent: d.DiscountPercent,
		Description:     d.Description,
		ValidFrom:       d.ValidFrom,
		ValidUntil:      d.ValidUntil,
		MaxUses:         d.MaxUses,
		Active:          true,
	}

	if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
		pct, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
		if err != nil {
			return rule, false, errors.Wrapf(err, "discount for %s", code)
		}
		rule.DiscountPercent = pct
	}
	if rule.DiscountPercent.IsNegative() || rule.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return rule, false, errors.Errorf("discount for %s must be within [0, 100]", code)
	}

	if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil || n < 0 {
			return rule, false, errors.Errorf("max uses for %s must be a non-negative integer", code)
		}
		rule.MaxUses = n
	}
	return rule, true, nil
}

func checkCode(code string) error {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return errors.Errorf("code %q must be %d to %d characters", code, minCodeLen, maxCodeLen)
	}
	for _, r := range code {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return errors.Errorf("code %q contains %q", code, r)
		}
	}
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// fileResult is what one batch file contributed.
type fileResult struct {
	rules   []promo.Rule
	skipped int
}

// readFiles parses every file concurrently. Malformed lines are logged and
// skipped; strict turns them into an error.
func readFiles(ctx context.Context, lg *zap.Logger, files []string, d defaults, strict bool) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			var (
				res    fileResult
				lineNo int
			)
			err := streamGzFile(ctx, path, func(line string) error {
				lineNo++
				rule, ok, err := parseLine(line, d)
				if err != nil {
					if strict {
						return errors.Wrapf(err, "%s:%d", path, lineNo)
					}
					res.skipped++
					lg.Debug("Skip line", zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
					return nil
				}
				if ok {
					res.rules = append(res.rules, rule)
				}
				if lineNo%progressEvery == 0 {
					lg.Info("Read progress", zap.String("file", path), zap.Int("lines", lineNo))
				}
				return nil
			})
			if err != nil {
				return err
			}
			lg.Info("File read",
				zap.String("file", path),
				zap.Int("codes", len(res.rules)),
				zap.Int("skipped", res.skipped),
			)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// merge deduplicates codes across files. The first occurrence in file order
// wins.
func merge(results []fileResult) (rules []promo.Rule, duplicates int) {
	seen := make(map[string]struct{})
	for _, res := range results {
		for _, rule := range res.rules {
			if _, ok := seen[rule.Code]; ok {
				duplicates++
				continue
			}
			seen[rule.Code] = struct{}{}
			rules = append(rules, rule)
		}
	}
	return rules, duplicates
}

// store is the subset of the promo repository used by the ingest.
type store interface {
	ListCodes(ctx context.Context) ([]string, error)
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)
	InsertRules(ctx context.Context, rules []promo.Rule) (int, error)
}

// dropExisting removes rules whose code is already stored. Stored codes are
// loaded into a bloom filter first so that only probable matches are checked
// against the database.
func dropExisting(ctx context.Context, s store, rules []promo.Rule) ([]promo.Rule, int, error) {
	stored, err := s.ListCodes(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list stored codes")
	}
	if len(stored) == 0 {
		return rules, 0, nil
	}
	filter := bloom.NewWithEstimates(uint(max(len(stored), 1000)), 0.001)
	for _, code := range stored {
		filter.AddString(code)
	}

	var maybe []string
	for _, rule := range rules {
		if filter.TestString(rule.Code) {
			maybe = append(maybe, rule.Code)
		}
	}
	if len(maybe) == 0 {
		return rules, 0, nil
	}
	existing, err := s.ExistingCodes(ctx, maybe)
	if err != nil {
		return nil, 0, errors.Wrap(err, "check stored codes")
	}

	fresh := rules[:0:0]
	for _, rule := range rules {
		if _, ok := existing[rule.Code]; !ok {
			fresh = append(fresh, rule)
		}
	}
	return fresh, len(rules) - len(fresh), nil
}

// insert writes rules in batches and returns the number of rows inserted.
func insert(ctx context.Context, lg *zap.Logger, s store, rules []promo.Rule, batchSize int) (int, error) {
	batchSize = max(batchSize, 1)
	inserted := 0
	for start := 0; start < len(rules); start += batchSize {
		end := min(start+batchSize, len(rules))
		n, err := s.InsertRules(ctx, rules[start:end])
		inserted += n
		if err != nil {
			return inserted, errors.Wrapf(err, "insert batch at %d", start)
		}
		lg.Info("Write progress", zap.Int("written", end), zap.Int("total", len(rules)))
	}
	return inserted, nil
}
