package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/freshcart/internal/domain/shipping"
)

// Order is a placed order with the prices the server computed for it.
// Money fields are rounded to cents.
type Order struct {
	ID               string
	Items            []Item
	Subtotal         decimal.Decimal
	CampaignDiscount decimal.Decimal
	CouponDiscount   decimal.Decimal
	ShippingFee      decimal.Decimal
	Total            decimal.Decimal
	CouponCode       string
	CampaignID       string
	CampaignName     string
	Fulfillment      shipping.Fulfillment
	CreatedAt        time.Time
}

// Item is a single order line. It is stored as JSON alongside the order.
type Item struct {
	ProductID           string          `json:"product_id"`
	VariantID           string          `json:"variant_id,omitempty"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	DiscountedUnitPrice decimal.Decimal `json:"discounted_unit_price"`
	CampaignID          string          `json:"campaign_id,omitempty"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
