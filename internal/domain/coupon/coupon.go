package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// ErrInvalidCoupon is returned when a coupon cannot be applied to the cart.
// Every more specific rejection matches it with errors.Is.
var ErrInvalidCoupon = errors.New("invalid coupon code")

var (
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired error = &rejection{msg: "coupon expired"}
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached error = &rejection{msg: "coupon usage limit reached"}
	// ErrCouponMinPurchase is returned when the cart is below the coupon minimum.
	ErrCouponMinPurchase error = &rejection{msg: "cart below coupon minimum purchase"}
)

type rejection struct {
	msg string
}

func (r *rejection) Error() string { return r.msg }

func (r *rejection) Is(target error) bool { return target == ErrInvalidCoupon }

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	MinPurchase  decimal.NullDecimal
	MaxDiscount  decimal.NullDecimal
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Item is a cart line as seen by coupon validation.
type Item struct {
	ProductID string
	VariantID string
	Price     decimal.Decimal
	Quantity  int
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
	DecrementUses(ctx context.Context, code string) error
}

// NormalizeCode trims and upper-cases a shopper-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
