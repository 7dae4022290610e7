package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		batchSize   int
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzip-compressed coupon batches")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob selecting batch files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "coupons per database round trip")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		lg.Fatal("Bad pattern", zap.Error(err))
	}
	sort.Strings(files)

	if err := run(ctx, lg, files, databaseURL, batchSize, dryRun); err != nil {
		lg.Fatal("Coupon ingest failed", zap.Error(err))
	}
	lg.Info("Coupon ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, files []string, databaseURL string, batchSize int, dryRun bool) error {
	ing := &ingester{lg: lg, batchSize: batchSize}

	dupes, err := ing.duplicates(ctx, files)
	if err != nil {
		return errors.Wrap(err, "find duplicates")
	}
	lg.Info("Duplicate codes dropped", zap.Int("count", len(dupes)))

	ing.writer = discard{}
	if !dryRun {
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()
		ing.writer = postgres.NewCouponRepository(pool)
	}

	st, err := ing.load(ctx, files, dupes)
	if err != nil {
		return errors.Wrap(err, "load coupons")
	}
	lg.Info("Coupons written",
		zap.Int64("written", st.written.Load()),
		zap.Int64("skipped", st.skipped.Load()),
		zap.Int64("invalid", st.invalid.Load()),
	)
	return nil
}
