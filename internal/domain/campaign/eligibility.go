package campaign

import "github.com/shopspring/decimal"

// Eligible reports whether the campaign can apply to a cart with the given
// pre-discount subtotal.
func (c Campaign) Eligible(subtotal decimal.Decimal) bool {
	if c.MinPurchase.Valid && c.MinPurchase.Decimal.GreaterThan(subtotal) {
		return false
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return false
	}
	return true
}

// FilterEligible returns the campaigns that are eligible for subtotal,
// preserving input order.
func FilterEligible(campaigns []Campaign, subtotal decimal.Decimal) []Campaign {
	out := make([]Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if c.Eligible(subtotal) {
			out = append(out, c)
		}
	}
	return out
}
