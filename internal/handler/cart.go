package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/pricing"
)

// PriceCart prices the submitted cart with the session's stored campaign
// selection.
func (h *Handler) PriceCart(w http.ResponseWriter, r *http.Request) {
	body, err := decodeCartBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.pricer.Price(r.Context(), body.request(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodePriced(e, res)
	})
}

// ChooseCampaign applies the campaign the shopper picked.
func (h *Handler) ChooseCampaign(w http.ResponseWriter, r *http.Request) {
	body, err := decodeCartBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if body.CampaignID == "" {
		h.fail(w, r, badRequest(errors.New("campaignId is required")))
		return
	}
	res, err := h.pricer.Choose(r.Context(), body.request(r), body.CampaignID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodePriced(e, res)
	})
}

// DismissCampaign closes the chooser and applies the best campaign.
func (h *Handler) DismissCampaign(w http.ResponseWriter, r *http.Request) {
	body, err := decodeCartBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.pricer.Dismiss(r.Context(), body.request(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodePriced(e, res)
	})
}

func encodePriced(e *jx.Encoder, res *pricing.Result) {
	e.ObjStart()
	e.FieldStart("revision")
	e.Int64(res.Revision)
	moneyField(e, "subtotal", res.Subtotal)

	e.FieldStart("discounts")
	e.ArrStart()
	for _, d := range res.Discounts {
		e.ObjStart()
		strField(e, "source", string(d.Source))
		strField(e, "sourceId", d.SourceID)
		strField(e, "label", d.Label)
		moneyField(e, "amount", d.Amount)
		e.ObjEnd()
	}
	e.ArrEnd()

	moneyField(e, "campaignDiscount", res.CampaignDiscount)
	moneyField(e, "couponDiscount", res.CouponDiscount)
	moneyField(e, "totalDiscount", res.TotalDiscount)
	moneyField(e, "discountedSubtotal", res.DiscountedSubtotal)
	moneyField(e, "shippingFee", res.Shipping.Fee)
	strField(e, "shippingReason", string(res.Shipping.Reason))
	if a := res.Shipping.Advisory; a != nil {
		e.FieldStart("shippingAdvisory")
		e.ObjStart()
		strField(e, "message", a.Message)
		e.FieldStart("progressPercent")
		e.Float64(a.Progress.Round(1).InexactFloat64())
		moneyField(e, "targetAmount", a.Target)
		moneyField(e, "remaining", a.Remaining)
		moneyField(e, "nextFee", a.NextFee)
		e.ObjEnd()
	}
	moneyField(e, "total", res.Total)

	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range res.Lines {
		e.ObjStart()
		strField(e, "productId", l.ProductID)
		optStrField(e, "variantId", l.VariantID)
		strField(e, "name", l.Name)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		moneyField(e, "unitPrice", l.UnitPrice)
		moneyField(e, "lineTotal", l.Total())
		moneyField(e, "discount", l.Discount)
		moneyField(e, "discountedUnitPrice", l.DiscountedUnitPrice)
		optStrField(e, "campaignId", l.CampaignID)
		optStrField(e, "campaignName", l.CampaignName)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("campaign")
	encodeSelection(e, res.Selection)

	optStrField(e, "couponCode", res.CouponCode)
	if res.CouponErr != nil {
		strField(e, "couponError", couponMessage(res.CouponErr))
	}
	optStrField(e, "freeShippingCampaignId", res.FreeShippingCampaignID)
	e.ObjEnd()
}

func encodeSelection(e *jx.Encoder, sel pricing.Selection) {
	e.ObjStart()
	optStrField(e, "appliedId", sel.AppliedID)
	e.FieldStart("pending")
	e.Bool(sel.Pending)
	e.FieldStart("candidates")
	e.ArrStart()
	for _, c := range sel.Candidates {
		encodeCandidate(e, c)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeCandidate(e *jx.Encoder, c campaign.Result) {
	e.ObjStart()
	strField(e, "id", c.Campaign.ID)
	strField(e, "name", c.Campaign.Name)
	strField(e, "type", string(c.Campaign.Type))
	strField(e, "scope", string(c.Scope))
	moneyField(e, "discount", c.Discount)
	strField(e, "label", c.Label)
	e.FieldStart("priority")
	e.Int(c.Campaign.Priority)
	e.ObjEnd()
}
