package campaign

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported campaign discount models.
type Type string

const (
	// TypePercentage takes a percentage off every covered line.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixedAmount takes a fixed amount off the covered lines.
	TypeFixedAmount Type = "FIXED_AMOUNT"
	// TypeBuyXGetY discounts whole sets of BuyQuantity units.
	TypeBuyXGetY Type = "BUY_X_GET_Y"
	// TypeFreeShipping waives the delivery fee and never discounts lines.
	TypeFreeShipping Type = "FREE_SHIPPING"
)

// Valid reports whether t is a known campaign type.
func (t Type) Valid() bool {
	switch t {
	case TypePercentage, TypeFixedAmount, TypeBuyXGetY, TypeFreeShipping:
		return true
	}
	return false
}

// ErrNotCandidate is returned when a shopper picks a campaign that does not
// currently apply to the cart.
var ErrNotCandidate = errors.New("campaign does not apply to cart")

// Campaign is a merchant-defined promotion. When ApplyToAll is set the
// category and product sets are ignored.
type Campaign struct {
	ID              string
	Name            string
	Type            Type
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	BuyQuantity     int
	GetQuantity     int
	MaxDiscount     decimal.NullDecimal
	MinPurchase     decimal.NullDecimal
	ApplyToAll      bool
	CategoryIDs     []string
	ProductIDs      []string
	Priority        int
	// UsageLimit of zero means unlimited.
	UsageLimit int
	UsageCount int
	StartsAt   *time.Time
	EndsAt     *time.Time
}

// Repository provides the active campaign feed. Date filtering is the
// provider's responsibility.
type Repository interface {
	ListActive(ctx context.Context, now time.Time) ([]Campaign, error)
	IncrementUsage(ctx context.Context, id string) error
}
