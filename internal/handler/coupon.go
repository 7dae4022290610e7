package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/pricing"
)

// ValidateCoupon checks a coupon code against the submitted items without
// redeeming it. The subtotal is always computed from catalog prices.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		code  string
		items []pricing.Item
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Str()
		case "items":
			items, err = decodeItems(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if code == "" {
		h.fail(w, r, badRequest(errors.New("code is required")))
		return
	}

	lines, err := pricing.ResolveLines(r.Context(), h.products, items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	discount, err := h.coupons.Validate(r.Context(), code, pricing.CouponItems(lines), cart.Subtotal(lines))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		strField(e, "code", discount.Code)
		moneyField(e, "discount", discount.Amount)
		strField(e, "description", discount.Description)
		e.ObjEnd()
	})
}
