package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/order"
	"github.com/xenking/freshcart/internal/domain/pricing"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

// statusOf maps domain errors to HTTP status codes and client messages.
func statusOf(err error) (int, string) {
	var (
		notFound *pricing.ProductNotFoundError
		variant  *pricing.VariantNotFoundError
		quantity *pricing.InvalidQuantityError
		stock    *pricing.InsufficientStockError
		mismatch *order.PriceMismatchError
	)
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, order.ErrEmptyItems), errors.Is(err, shipping.ErrUnknownFulfillment):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity, notFound.Error()
	case errors.As(err, &variant):
		return http.StatusUnprocessableEntity, variant.Error()
	case errors.As(err, &quantity):
		return http.StatusUnprocessableEntity, quantity.Error()
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return http.StatusUnprocessableEntity, couponMessage(err)
	case errors.As(err, &stock):
		return http.StatusConflict, stock.Error()
	case errors.As(err, &mismatch):
		return http.StatusConflict, mismatch.Error()
	case errors.Is(err, campaign.ErrNotCandidate):
		return http.StatusConflict, campaign.ErrNotCandidate.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// couponMessage returns the most specific rejection reason.
func couponMessage(err error) string {
	for _, target := range []error{
		coupon.ErrCouponExpired,
		coupon.ErrCouponUsageLimitReached,
		coupon.ErrCouponMinPurchase,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return coupon.ErrInvalidCoupon.Error()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeError(w, status, msg)
}
