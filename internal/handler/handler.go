// Package handler exposes the storefront pricing API over HTTP.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/order"
	"github.com/xenking/freshcart/internal/domain/pricing"
	"github.com/xenking/freshcart/internal/domain/product"
)

// CartPricer prices carts and single products.
type CartPricer interface {
	Price(ctx context.Context, req pricing.Request) (*pricing.Result, error)
	Choose(ctx context.Context, req pricing.Request, campaignID string) (*pricing.Result, error)
	Dismiss(ctx context.Context, req pricing.Request) (*pricing.Result, error)
	PreviewProduct(ctx context.Context, productID, variantID string, quantity int) (*pricing.ProductPrice, error)
}

// OrderPlacer places orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

var (
	_ CartPricer  = (*pricing.Service)(nil)
	_ OrderPlacer = (*order.Service)(nil)
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
}

// SessionHeader carries the shopping session used to remember campaign
// choices.
const SessionHeader = "X-Session-ID"

// Handler serves the /api routes.
type Handler struct {
	products     product.Repository
	pricer       CartPricer
	coupons      coupon.Validator
	orders       OrderPlacer
	security     *Security
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	pricer CartPricer,
	coupons coupon.Validator,
	orders OrderPlacer,
	security *Security,
) *Handler {
	return &Handler{
		products:     products,
		pricer:       pricer,
		coupons:      coupons,
		orders:       orders,
		security:     security,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts the API under /api.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/product", h.ListProducts)
		r.Get("/product/{productId}", h.GetProduct)
		r.Get("/product/{productId}/price", h.PriceProduct)

		r.Post("/cart/price", h.PriceCart)
		r.Post("/cart/campaign", h.ChooseCampaign)
		r.Post("/cart/campaign/dismiss", h.DismissCampaign)

		r.Post("/coupon/validate", h.ValidateCoupon)

		r.With(h.security.Require(ScopeOrders)).Post("/order", h.PlaceOrder)
	})
}
