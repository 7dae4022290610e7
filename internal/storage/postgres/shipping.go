package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/freshcart/internal/domain/shipping"
)

const (
	listTiersSQL       = `SELECT min, max, fee, fee_percent FROM shipping_tiers ORDER BY min, id`
	getThresholdSQL    = `SELECT free_shipping_threshold FROM shipping_settings WHERE id`
	deleteTiersSQL     = `DELETE FROM shipping_tiers`
	insertTierSQL      = `INSERT INTO shipping_tiers (min, max, fee, fee_percent) VALUES ($1, $2, $3, $4)`
	upsertThresholdSQL = `INSERT INTO shipping_settings (id, free_shipping_threshold) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET free_shipping_threshold = EXCLUDED.free_shipping_threshold`
)

var _ shipping.Repository = (*ShippingRepository)(nil)

// ShippingRepository stores the merchant delivery fee table.
type ShippingRepository struct {
	pool *pgxpool.Pool
}

// NewShippingRepository returns a ShippingRepository that uses the given pool.
func NewShippingRepository(pool *pgxpool.Pool) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

// Load reads the tier table and the free shipping threshold. A database
// without settings yields an empty Config.
func (r *ShippingRepository) Load(ctx context.Context) (shipping.Config, error) {
	var cfg shipping.Config

	rows, err := r.pool.Query(ctx, listTiersSQL)
	if err != nil {
		return cfg, errors.Wrap(err, "list shipping tiers")
	}
	cfg.Tiers, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (shipping.Tier, error) {
		var t shipping.Tier
		err := row.Scan(&t.Min, &t.Max, &t.Fee, &t.FeePercent)
		return t, err
	})
	if err != nil {
		return cfg, errors.Wrap(err, "list shipping tiers")
	}

	err = r.pool.QueryRow(ctx, getThresholdSQL).Scan(&cfg.FreeShippingThreshold)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return cfg, errors.Wrap(err, "get free shipping threshold")
	}
	return cfg, nil
}

// Save replaces the stored configuration with cfg.
func (r *ShippingRepository) Save(ctx context.Context, cfg shipping.Config) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteTiersSQL); err != nil {
			return errors.Wrap(err, "delete shipping tiers")
		}
		for _, t := range cfg.Tiers {
			if _, err := tx.Exec(ctx, insertTierSQL, t.Min, t.Max, t.Fee, t.FeePercent); err != nil {
				return errors.Wrap(err, "insert shipping tier")
			}
		}
		if _, err := tx.Exec(ctx, upsertThresholdSQL, cfg.FreeShippingThreshold); err != nil {
			return errors.Wrap(err, "save free shipping threshold")
		}
		return nil
	})
}
