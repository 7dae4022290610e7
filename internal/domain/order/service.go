package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/pricing"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

// ErrEmptyItems is returned when an order has no lines.
var ErrEmptyItems = errors.New("items required")

// PriceMismatchError indicates the client priced a line differently than
// the server. The client is expected to refresh the cart and retry.
type PriceMismatchError struct {
	ProductID string
	Field     string
	Client    string
	Server    string
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch for product %s: client %q, server %q", e.Field, e.ProductID, e.Client, e.Server)
}

// LineRequest is an order line as submitted by the client. The optional
// discounted unit price and campaign id are what the client displayed.
type LineRequest struct {
	ProductID           string
	VariantID           string
	Quantity            int
	DiscountedUnitPrice decimal.NullDecimal
	CampaignID          string
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items       []LineRequest
	CouponCode  string
	CampaignID  string
	Fulfillment shipping.Fulfillment
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order  *Order
	Priced *pricing.Result
}

// Pricer re-prices a cart without touching stored selections.
type Pricer interface {
	Reprice(ctx context.Context, req pricing.Request, campaignID string) (*pricing.Result, error)
}

// Service encapsulates order placement business logic.
type Service struct {
	pricer    Pricer
	coupons   coupon.Redeemer
	campaigns campaign.Repository
	orders    Repository
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	pricer Pricer,
	coupons coupon.Redeemer,
	campaigns campaign.Repository,
	orders Repository,
) *Service {
	return &Service{
		pricer:    pricer,
		coupons:   coupons,
		campaigns: campaigns,
		orders:    orders,
		now:       time.Now,
	}
}

// PlaceOrder re-prices the submitted cart, checks it against what the client
// displayed, redeems the coupon and persists the order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items := make([]pricing.Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = pricing.Item{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity}
	}

	priced, err := s.pricer.Reprice(ctx, pricing.Request{
		Items:       items,
		CouponCode:  req.CouponCode,
		Fulfillment: req.Fulfillment,
	}, req.CampaignID)
	if err != nil {
		return nil, errors.Wrap(err, "price order")
	}
	if priced.CouponErr != nil {
		return nil, errors.Wrap(priced.CouponErr, "validate coupon")
	}
	if err := verify(req.Items, priced.Lines); err != nil {
		return nil, err
	}

	o := newOrder(priced, req.Fulfillment)
	o.ID = uuid.New().String()
	o.CreatedAt = s.now().UTC()

	if o.CouponCode != "" {
		if err := s.coupons.Redeem(ctx, o.CouponCode); err != nil {
			return nil, errors.Wrap(err, "redeem coupon")
		}
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if o.CouponCode != "" {
			s.releaseCoupon(ctx, o)
		}
		return nil, errors.Wrap(err, "create order")
	}

	if o.CampaignID != "" {
		if err := s.campaigns.IncrementUsage(ctx, o.CampaignID); err != nil {
			zctx.From(ctx).Warn("Increment campaign usage",
				zap.String("campaign", o.CampaignID),
				zap.String("order", o.ID),
				zap.Error(err),
			)
		}
	}

	return &PlaceOrderResult{Order: o, Priced: priced}, nil
}

// releaseCoupon gives back the redemption of an order that was not stored.
func (s *Service) releaseCoupon(ctx context.Context, o *Order) {
	if err := s.coupons.Release(ctx, o.CouponCode); err != nil {
		zctx.From(ctx).Error("Release coupon of failed order",
			zap.String("coupon", o.CouponCode),
			zap.String("order", o.ID),
			zap.Error(err),
		)
	}
}

func verify(submitted []LineRequest, lines []pricing.Line) error {
	for i, item := range submitted {
		l := lines[i]
		if item.CampaignID != "" && campaign.NormalizeID(item.CampaignID) != campaign.NormalizeID(l.CampaignID) {
			return &PriceMismatchError{
				ProductID: item.ProductID,
				Field:     "campaign",
				Client:    item.CampaignID,
				Server:    l.CampaignID,
			}
		}
		if !item.DiscountedUnitPrice.Valid {
			continue
		}
		client := item.DiscountedUnitPrice.Decimal.Round(2)
		server := l.DiscountedUnitPrice.Round(2)
		if !client.Equal(server) {
			return &PriceMismatchError{
				ProductID: item.ProductID,
				Field:     "discounted unit price",
				Client:    client.StringFixed(2),
				Server:    server.StringFixed(2),
			}
		}
	}
	return nil
}

func newOrder(priced *pricing.Result, fulfillment shipping.Fulfillment) *Order {
	o := &Order{
		Items:            make([]Item, len(priced.Lines)),
		Subtotal:         priced.Subtotal.Round(2),
		CampaignDiscount: priced.CampaignDiscount.Round(2),
		CouponDiscount:   priced.CouponDiscount.Round(2),
		ShippingFee:      priced.Shipping.Fee.Round(2),
		Total:            priced.Total.Round(2),
		CouponCode:       priced.CouponCode,
		CampaignID:       priced.Selection.AppliedID,
		Fulfillment:      fulfillment,
	}
	if fulfillment == "" {
		o.Fulfillment = shipping.Delivery
	}
	for _, c := range priced.Selection.Candidates {
		if c.Campaign.ID == o.CampaignID {
			o.CampaignName = c.Campaign.Name
		}
	}
	for i, l := range priced.Lines {
		o.Items[i] = Item{
			ProductID:           l.ProductID,
			VariantID:           l.VariantID,
			Name:                l.Name,
			Quantity:            l.Quantity,
			UnitPrice:           l.UnitPrice.Round(2),
			DiscountedUnitPrice: l.DiscountedUnitPrice.Round(2),
			CampaignID:          l.CampaignID,
		}
	}
	return o
}
