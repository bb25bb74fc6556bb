// Command seed-db applies the schema and loads development data: events with
// their ticket types, promo codes and guest list entries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/arell305/hostlyapp/db"
	"github.com/arell305/hostlyapp/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		seedFile    string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "", "path to a seed JSON file, the embedded seed is used when empty")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Error("Database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, seedFile); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedFile string) error {
	data := db.Seed
	if seedFile != "" {
		lg.Info("Reading seed file", zap.String("path", seedFile))
		b, err := os.ReadFile(seedFile)
		if err != nil {
			return errors.Wrap(err, "read seed file")
		}
		data = b
	}
	s, err := decodeSeed(data)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return apply(ctx, lg, s,
		postgres.NewCatalogRepository(pool),
		postgres.NewPromoRepository(pool),
		postgres.NewGuestRepository(pool),
	)
}
