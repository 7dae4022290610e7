package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount rule gives a cart with the given items and
// subtotal. The result is never negative and never exceeds subtotal.
func Apply(rule *Rule, items []Item, subtotal decimal.Decimal) (Discount, error) {
	if rule.MinItems > 0 && totalQuantity(items) < rule.MinItems {
		return Discount{}, ErrInvalidCoupon
	}
	if rule.MinPurchase.Valid && subtotal.LessThan(rule.MinPurchase.Decimal) {
		return Discount{}, ErrCouponMinPurchase
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFixed:
		amount = rule.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	if rule.MaxDiscount.Valid {
		amount = decimal.Min(amount, rule.MaxDiscount.Decimal)
	}
	amount = decimal.Min(floorAtZero(amount), floorAtZero(subtotal))

	return Discount{
		Code:        rule.Code,
		Amount:      amount,
		Description: rule.Description,
	}, nil
}

func totalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
