// Package pricing turns a cart, the active campaigns and an optional coupon
// into a priced cart.
package pricing

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

// Intent is the selection command carried by a pricing pass.
type Intent int

const (
	// IntentNone prices the cart with the stored selection, if any.
	IntentNone Intent = iota
	// IntentChoose applies SelectedCampaignID as an explicit choice.
	IntentChoose
	// IntentDismiss closes the chooser and applies the top-ranked campaign.
	IntentDismiss
)

// AppliedCoupon is a coupon that already passed validation.
type AppliedCoupon struct {
	Code        string
	Description string
	Amount      decimal.Decimal
}

// Input is everything a pricing pass depends on.
type Input struct {
	Lines              []cart.Line
	Campaigns          []campaign.Campaign
	Coupon             *AppliedCoupon
	SelectedCampaignID string
	Intent             Intent
	Fulfillment        shipping.Fulfillment
	Shipping           shipping.Config
}

// Source identifies where a discount comes from.
type Source string

const (
	SourceCampaign Source = "campaign"
	SourceCoupon   Source = "coupon"
)

// Discount is one entry of the itemized discount list.
type Discount struct {
	Source   Source
	SourceID string
	Label    string
	Amount   decimal.Decimal
}

// Line is a cart line with its share of the campaign discount.
type Line struct {
	cart.Line
	Discount decimal.Decimal
	// DiscountedUnitPrice is the per-unit average after the campaign discount.
	DiscountedUnitPrice decimal.Decimal
	CampaignID          string
	CampaignName        string
}

// Selection describes the campaign choice made in a pricing pass.
type Selection struct {
	AppliedID  string
	Pending    bool
	Candidates []campaign.Result
	Store      campaign.StoreAction
}

// PricedCart is the result of a pricing pass. Amounts carry full precision;
// rounding happens only when they are presented.
type PricedCart struct {
	Subtotal         decimal.Decimal
	CampaignDiscount decimal.Decimal
	CouponDiscount   decimal.Decimal
	TotalDiscount    decimal.Decimal
	// DiscountedSubtotal is max(0, Subtotal - TotalDiscount).
	DiscountedSubtotal     decimal.Decimal
	Discounts              []Discount
	Shipping               shipping.Quote
	Total                  decimal.Decimal
	Lines                  []Line
	Selection              Selection
	FreeShippingCampaignID string
}

// Engine prices carts. It holds no state and is safe for concurrent use.
type Engine struct {
	Calculator campaign.Calculator
	Selector   campaign.Selector
	Shipping   shipping.Resolver
}

// Price runs a full pricing pass. It only fails when an explicit choice
// names a campaign that does not apply to the cart.
func (e Engine) Price(in Input) (PricedCart, error) {
	subtotal := cart.Subtotal(in.Lines)
	eligible := campaign.FilterEligible(in.Campaigns, subtotal)

	results := e.candidates(eligible, in.Lines)

	var decision campaign.Decision
	switch in.Intent {
	case IntentChoose:
		var err error
		decision, err = e.Selector.Choose(results, in.SelectedCampaignID)
		if err != nil {
			return PricedCart{}, err
		}
	case IntentDismiss:
		decision = e.Selector.Dismiss(results)
	default:
		decision = e.Selector.Select(results, in.SelectedCampaignID)
	}

	out := PricedCart{
		Subtotal:         subtotal,
		CampaignDiscount: decimal.Zero,
		CouponDiscount:   decimal.Zero,
		Lines:            pricedLines(in.Lines, decision.Applied),
		Selection: Selection{
			AppliedID:  decision.AppliedID(),
			Pending:    decision.Pending,
			Candidates: decision.Candidates,
			Store:      decision.Store,
		},
	}

	if a := decision.Applied; a != nil {
		out.CampaignDiscount = a.Discount
		out.Discounts = append(out.Discounts, Discount{
			Source:   SourceCampaign,
			SourceID: a.Campaign.ID,
			Label:    a.Label,
			Amount:   a.Discount,
		})
	}
	if c := in.Coupon; c != nil && c.Amount.IsPositive() {
		out.CouponDiscount = c.Amount
		out.Discounts = append(out.Discounts, Discount{
			Source:   SourceCoupon,
			SourceID: c.Code,
			Label:    c.Description,
			Amount:   c.Amount,
		})
	}

	out.TotalDiscount = out.CampaignDiscount.Add(out.CouponDiscount)
	out.DiscountedSubtotal = floorAtZero(subtotal.Sub(out.TotalDiscount))

	out.FreeShippingCampaignID = freeShippingCampaign(eligible, in.Lines)
	out.Shipping = e.Shipping.Resolve(in.Shipping, shipping.Request{
		Fulfillment:          in.Fulfillment,
		Subtotal:             out.DiscountedSubtotal,
		FreeShippingCampaign: out.FreeShippingCampaignID != "",
	})

	out.Total = floorAtZero(subtotal.Sub(out.TotalDiscount).Add(out.Shipping.Fee))
	return out, nil
}

// candidates applies every eligible line-level campaign. Campaigns that end
// up giving nothing are not offered.
func (e Engine) candidates(eligible []campaign.Campaign, lines []cart.Line) []campaign.Result {
	var out []campaign.Result
	for _, c := range eligible {
		if c.Type == campaign.TypeFreeShipping {
			continue
		}
		res, ok := e.Calculator.Apply(c, lines)
		if !ok || !res.Discount.IsPositive() {
			continue
		}
		out = append(out, res)
	}
	return out
}

func pricedLines(lines []cart.Line, applied *campaign.Result) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{Line: l, Discount: decimal.Zero, DiscountedUnitPrice: l.UnitPrice}
	}
	if applied == nil {
		return out
	}
	for _, a := range applied.Allocations {
		pl := &out[a.Line]
		pl.Discount = a.Amount
		pl.CampaignID = applied.Campaign.ID
		pl.CampaignName = applied.Campaign.Name
		if pl.Quantity > 0 {
			pl.DiscountedUnitPrice = pl.Total().Sub(a.Amount).Div(decimal.NewFromInt(int64(pl.Quantity)))
		}
	}
	return out
}

// freeShippingCampaign returns the best eligible free-shipping campaign
// reaching the cart, or "".
func freeShippingCampaign(eligible []campaign.Campaign, lines []cart.Line) string {
	var matches []campaign.Campaign
	for _, c := range eligible {
		if c.Type == campaign.TypeFreeShipping && c.ReachesAny(lines) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	slices.SortStableFunc(matches, func(a, b campaign.Campaign) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return strings.Compare(a.ID, b.ID)
	})
	return matches[0].ID
}

func floorAtZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
