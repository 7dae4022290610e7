package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Fulfillment is how the order reaches the shopper.
type Fulfillment string

const (
	Delivery Fulfillment = "delivery"
	Pickup   Fulfillment = "pickup"
)

// ErrUnknownFulfillment is returned for fulfillment values other than
// delivery and pickup.
var ErrUnknownFulfillment = errors.New("unknown fulfillment type")

// ParseFulfillment parses a fulfillment type. An empty string means delivery.
func ParseFulfillment(s string) (Fulfillment, error) {
	switch f := Fulfillment(s); f {
	case Delivery, Pickup:
		return f, nil
	case "":
		return Delivery, nil
	default:
		return "", ErrUnknownFulfillment
	}
}

// Tier maps a subtotal range to a delivery fee. When FeePercent is set it
// takes precedence over Fee. A missing Max leaves the range open.
type Tier struct {
	Min        decimal.Decimal
	Max        decimal.NullDecimal
	Fee        decimal.Decimal
	FeePercent decimal.NullDecimal
}

// Contains reports whether v falls inside [Min, Max].
func (t Tier) Contains(v decimal.Decimal) bool {
	if v.LessThan(t.Min) {
		return false
	}
	return !t.Max.Valid || !v.GreaterThan(t.Max.Decimal)
}

// FeeAt evaluates the tier fee for subtotal v.
func (t Tier) FeeAt(v decimal.Decimal) decimal.Decimal {
	fee := t.Fee
	if t.FeePercent.Valid {
		fee = v.Mul(t.FeePercent.Decimal).Div(decimal.NewFromInt(100))
	}
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

// Config is the merchant's delivery fee table.
type Config struct {
	Tiers                 []Tier
	FreeShippingThreshold decimal.NullDecimal
}

// Repository loads the merchant shipping configuration.
type Repository interface {
	Load(ctx context.Context) (Config, error)
}
