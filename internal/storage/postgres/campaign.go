package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/freshcart/internal/domain/campaign"
)

const (
	campaignColumns = `id, name, type, discount_percent, discount_amount, buy_quantity, get_quantity,
		max_discount, min_purchase, apply_to_all, category_ids, product_ids, priority,
		usage_limit, usage_count, starts_at, ends_at`

	listActiveCampaignsSQL = `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE active
			AND (starts_at IS NULL OR starts_at <= $1)
			AND (ends_at IS NULL OR ends_at >= $1)
		ORDER BY priority DESC, id`

	incrementCampaignUsageSQL = `UPDATE campaigns SET usage_count = usage_count + 1 WHERE id = $1`

	upsertCampaignSQL = `INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type,
			discount_percent = EXCLUDED.discount_percent, discount_amount = EXCLUDED.discount_amount,
			buy_quantity = EXCLUDED.buy_quantity, get_quantity = EXCLUDED.get_quantity,
			max_discount = EXCLUDED.max_discount, min_purchase = EXCLUDED.min_purchase,
			apply_to_all = EXCLUDED.apply_to_all, category_ids = EXCLUDED.category_ids,
			product_ids = EXCLUDED.product_ids, priority = EXCLUDED.priority,
			usage_limit = EXCLUDED.usage_limit, starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at, active = TRUE`
)

var _ campaign.Repository = (*CampaignRepository)(nil)

// CampaignRepository implements campaign.Repository backed by PostgreSQL.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository returns a CampaignRepository that uses the given pool.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// ListActive returns active campaigns whose date window contains now.
// Eligibility against the cart is left to the caller.
func (r *CampaignRepository) ListActive(ctx context.Context, now time.Time) ([]campaign.Campaign, error) {
	rows, err := r.pool.Query(ctx, listActiveCampaignsSQL, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active campaigns")
	}
	campaigns, err := pgx.CollectRows(rows, scanCampaign)
	if err != nil {
		return nil, errors.Wrap(err, "list active campaigns")
	}
	return campaigns, nil
}

// IncrementUsage counts one more order that used the campaign.
func (r *CampaignRepository) IncrementUsage(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, incrementCampaignUsageSQL, id); err != nil {
		return errors.Wrapf(err, "increment usage of campaign %q", id)
	}
	return nil
}

// Upsert creates or replaces a campaign definition. The usage counter is
// preserved on update.
func (r *CampaignRepository) Upsert(ctx context.Context, c campaign.Campaign) error {
	categories, products := c.CategoryIDs, c.ProductIDs
	if categories == nil {
		categories = []string{}
	}
	if products == nil {
		products = []string{}
	}
	_, err := r.pool.Exec(ctx, upsertCampaignSQL,
		c.ID, c.Name, string(c.Type), c.DiscountPercent, c.DiscountAmount, c.BuyQuantity, c.GetQuantity,
		c.MaxDiscount, c.MinPurchase, c.ApplyToAll, categories, products, c.Priority,
		c.UsageLimit, c.UsageCount, c.StartsAt, c.EndsAt,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert campaign %q", c.ID)
	}
	return nil
}

func scanCampaign(row pgx.CollectableRow) (campaign.Campaign, error) {
	var (
		c   campaign.Campaign
		typ string
	)
	err := row.Scan(
		&c.ID, &c.Name, &typ, &c.DiscountPercent, &c.DiscountAmount, &c.BuyQuantity, &c.GetQuantity,
		&c.MaxDiscount, &c.MinPurchase, &c.ApplyToAll, &c.CategoryIDs, &c.ProductIDs, &c.Priority,
		&c.UsageLimit, &c.UsageCount, &c.StartsAt, &c.EndsAt,
	)
	c.Type = campaign.Type(typ)
	return c, err
}
