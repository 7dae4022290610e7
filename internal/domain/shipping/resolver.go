package shipping

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Reason records which rule produced a quote.
type Reason string

const (
	ReasonPickup    Reason = "pickup"
	ReasonCampaign  Reason = "free_shipping_campaign"
	ReasonThreshold Reason = "free_shipping_threshold"
	ReasonTier      Reason = "tier"
	ReasonNoTier    Reason = "no_tier"
)

// Request carries what the resolver needs from the current cart.
type Request struct {
	Fulfillment Fulfillment
	// Subtotal is the cart subtotal after all discounts.
	Subtotal decimal.Decimal
	// FreeShippingCampaign is set when an eligible free-shipping campaign
	// reaches the cart.
	FreeShippingCampaign bool
}

// Advisory tells the shopper how far the cart is from a cheaper fee.
type Advisory struct {
	Message   string
	Target    decimal.Decimal
	Remaining decimal.Decimal
	// Progress is a percentage in [0, 100].
	Progress decimal.Decimal
	NextFee  decimal.Decimal
}

// Quote is the resolved delivery fee.
type Quote struct {
	Fee      decimal.Decimal
	Reason   Reason
	Advisory *Advisory
}

// Resolver computes delivery fees from a tier table.
type Resolver struct {
	CurrencySymbol string
}

// Resolve returns the fee for req under cfg.
func (r Resolver) Resolve(cfg Config, req Request) Quote {
	if req.Fulfillment == Pickup {
		return Quote{Fee: decimal.Zero, Reason: ReasonPickup}
	}
	if req.FreeShippingCampaign {
		return Quote{Fee: decimal.Zero, Reason: ReasonCampaign}
	}

	subtotal := req.Subtotal
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	if cfg.FreeShippingThreshold.Valid && !subtotal.LessThan(cfg.FreeShippingThreshold.Decimal) {
		return Quote{Fee: decimal.Zero, Reason: ReasonThreshold}
	}

	tiers := sortedTiers(cfg.Tiers)
	q := Quote{Fee: decimal.Zero, Reason: ReasonNoTier}
	if t, ok := findTier(tiers, subtotal); ok {
		q.Fee = t.FeeAt(subtotal)
		q.Reason = ReasonTier
	}
	if q.Fee.IsPositive() {
		q.Advisory = r.advise(tiers, cfg.FreeShippingThreshold, subtotal, q.Fee)
	}
	return q
}

// findTier returns the tier containing v. When v falls into a gap the
// highest tier starting at or below v is used.
func findTier(tiers []Tier, v decimal.Decimal) (Tier, bool) {
	for _, t := range tiers {
		if t.Contains(v) {
			return t, true
		}
	}
	var (
		best  Tier
		found bool
	)
	for _, t := range tiers {
		if !t.Min.GreaterThan(v) {
			best, found = t, true
		}
	}
	return best, found
}

func (r Resolver) advise(tiers []Tier, threshold decimal.NullDecimal, subtotal, fee decimal.Decimal) *Advisory {
	var (
		next  *Tier
		nextF decimal.Decimal
	)
	for i := range tiers {
		t := &tiers[i]
		if !t.Min.GreaterThan(subtotal) {
			continue
		}
		f := t.FeeAt(t.Min)
		if !f.LessThan(fee) {
			continue
		}
		// Tiers are sorted by Min, so the first of equal fees is the nearest.
		if next == nil || f.LessThan(nextF) {
			next, nextF = t, f
		}
	}

	switch {
	case next != nil:
		return r.advisory(subtotal, next.Min, nextF)
	case threshold.Valid && threshold.Decimal.GreaterThan(subtotal):
		return r.advisory(subtotal, threshold.Decimal, decimal.Zero)
	}
	return nil
}

func (r Resolver) advisory(subtotal, target, nextFee decimal.Decimal) *Advisory {
	remaining := target.Sub(subtotal)
	a := &Advisory{
		Target:    target,
		Remaining: remaining,
		Progress:  progress(subtotal, target),
		NextFee:   nextFee,
	}
	if nextFee.IsZero() {
		a.Message = fmt.Sprintf("%s%s more for free shipping", r.CurrencySymbol, remaining.StringFixed(2))
	} else {
		a.Message = fmt.Sprintf("%s%s more for %s%s shipping",
			r.CurrencySymbol, remaining.StringFixed(2), r.CurrencySymbol, nextFee.StringFixed(2))
	}
	return a
}

func progress(subtotal, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return hundred
	}
	p := subtotal.Div(target).Mul(hundred)
	switch {
	case p.IsNegative():
		return decimal.Zero
	case p.GreaterThan(hundred):
		return hundred
	}
	return p
}

func sortedTiers(tiers []Tier) []Tier {
	out := slices.Clone(tiers)
	slices.SortStableFunc(out, func(a, b Tier) int {
		return a.Min.Cmp(b.Min)
	})
	return out
}
