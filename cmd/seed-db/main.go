package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/domain/auth"
	"github.com/xenking/freshcart/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		fixtureFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture", "db/seed/catalog.yaml", "path to the seed YAML file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or FRESHCART_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FRESHCART_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("FRESHCART_SEED_API_KEY")
	}
	if apiKey == "" {
		lg.Fatal("API key is required: set --api-key or FRESHCART_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("FRESHCART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, fixtureFile, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, fixtureFile, apiKey, pepper string) error {
	f, err := loadFixture(fixtureFile)
	if err != nil {
		return err
	}
	campaigns, err := f.campaigns()
	if err != nil {
		return err
	}
	coupons, err := f.coupons()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := postgres.NewProductRepository(pool)
	for _, p := range f.products() {
		if err := products.Upsert(ctx, p); err != nil {
			return err
		}
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.Int("variants", len(p.Variants)))
	}
	lg.Info("Products seeded", zap.Int("count", len(f.Products)))

	campaignRepo := postgres.NewCampaignRepository(pool)
	for _, c := range campaigns {
		if err := campaignRepo.Upsert(ctx, c); err != nil {
			return err
		}
	}
	lg.Info("Campaigns seeded", zap.Int("count", len(campaigns)))

	if err := postgres.NewCouponRepository(pool).UpsertBatch(ctx, coupons); err != nil {
		return err
	}
	lg.Info("Coupons seeded", zap.Int("count", len(coupons)))

	if err := postgres.NewShippingRepository(pool).Save(ctx, f.shipping()); err != nil {
		return errors.Wrap(err, "seed shipping")
	}
	lg.Info("Shipping tiers seeded", zap.Int("tiers", len(f.Shipping.Tiers)))

	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    "Default storefront key",
		Scopes:  []string{"orders:write"},
	}); err != nil {
		return err
	}
	lg.Info("API key seeded", zap.String("id", "default"))
	return nil
}
