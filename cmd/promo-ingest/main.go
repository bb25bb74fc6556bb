// Command promo-ingest loads gzipped batches of promo codes into the
// promo_codes table.
//
// Each line of a batch file is CODE[,DISCOUNT_PERCENT[,MAX_USES]]. Flags
// supply the organization, optional event scope and the defaults for
// omitted columns.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arell305/hostlyapp/internal/storage/postgres"
)

type options struct {
	dataDir     string
	databaseURL string
	batchSize   int
	strict      bool
	dryRun      bool

	organizationID string
	eventID        string
	discount       string
	maxUses        int
	description    string
	validFrom      string
	validUntil     string
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing *.gz promo code batches")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.batchSize, "batch", 1000, "rows per insert batch")
	flag.BoolVar(&opts.strict, "strict", false, "fail on malformed lines instead of skipping them")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and deduplicate without writing")
	flag.StringVar(&opts.organizationID, "org", "", "organization owning the codes (required)")
	flag.StringVar(&opts.eventID, "event", "", "restrict the codes to one event")
	flag.StringVar(&opts.discount, "discount", "10", "default discount percent")
	flag.IntVar(&opts.maxUses, "max-uses", 0, "default max uses per code, 0 is unlimited")
	flag.StringVar(&opts.description, "description", "", "description stored with every code")
	flag.StringVar(&opts.validFrom, "valid-from", "", "RFC 3339 start of the validity window")
	flag.StringVar(&opts.validUntil, "valid-until", "", "RFC 3339 end of the validity window")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("Promo ingest failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Promo ingest completed")
}

func (o options) defaults() (defaults, error) {
	d := defaults{
		OrganizationID: o.organizationID,
		EventID:        o.eventID,
		MaxUses:        o.maxUses,
		Description:    o.description,
	}
	if d.OrganizationID == "" {
		return d, errors.New("--org is required")
	}
	pct, err := decimal.NewFromString(o.discount)
	if err != nil {
		return d, errors.Wrap(err, "parse --discount")
	}
	d.DiscountPercent = pct

	parse := func(name, v string) (*time.Time, error) {
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse --%s", name)
		}
		return &t, nil
	}
	if d.ValidFrom, err = parse("valid-from", o.validFrom); err != nil {
		return d, err
	}
	if d.ValidUntil, err = parse("valid-until", o.validUntil); err != nil {
		return d, err
	}
	if d.ValidFrom != nil && d.ValidUntil != nil && d.ValidUntil.Before(*d.ValidFrom) {
		return d, errors.New("--valid-until is before --valid-from")
	}
	return d, nil
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	d, err := opts.defaults()
	if err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(opts.dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list batch files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files in %s", opts.dataDir)
	}
	sort.Strings(files)
	lg.Info("Reading batches", zap.Int("files", len(files)))

	results, err := readFiles(ctx, lg, files, d, opts.strict)
	if err != nil {
		return errors.Wrap(err, "read batches")
	}
	rules, duplicates := merge(results)
	lg.Info("Batches merged", zap.Int("codes", len(rules)), zap.Int("duplicates", duplicates))

	if opts.dryRun || len(rules) == 0 {
		return nil
	}
	if opts.databaseURL == "" {
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()
	repo := postgres.NewPromoRepository(pool)

	fresh, existing, err := dropExisting(ctx, repo, rules)
	if err != nil {
		return err
	}
	lg.Info("Existing codes skipped", zap.Int("existing", existing), zap.Int("new", len(fresh)))

	inserted, err := insert(ctx, lg, repo, fresh, opts.batchSize)
	if err != nil {
		return err
	}
	lg.Info("Codes inserted", zap.Int("inserted", inserted))
	return nil
}
