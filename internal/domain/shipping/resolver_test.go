package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func nd(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(v))
}

var twoTiers = Config{
	Tiers: []Tier{
		{Min: d("30"), Fee: d("0")},
		{Min: d("0"), Max: nd("29.99"), Fee: d("4.99")},
	},
}

func TestResolver_Resolve(t *testing.T) {
	r := Resolver{CurrencySymbol: "€"}

	tests := []struct {
		name       string
		cfg        Config
		req        Request
		wantFee    decimal.Decimal
		wantReason Reason
	}{
		{
			name:       "pickup is free",
			cfg:        twoTiers,
			req:        Request{Fulfillment: Pickup, Subtotal: d("1")},
			wantFee:    decimal.Zero,
			wantReason: ReasonPickup,
		},
		{
			name:       "free shipping campaign",
			cfg:        twoTiers,
			req:        Request{Fulfillment: Delivery, Subtotal: d("1"), FreeShippingCampaign: true},
			wantFee:    decimal.Zero,
			wantReason: ReasonCampaign,
		},
		{
			name:       "threshold reached",
			cfg:        Config{Tiers: twoTiers.Tiers, FreeShippingThreshold: nd("20")},
			req:        Request{Fulfillment: Delivery, Subtotal: d("20")},
			wantFee:    decimal.Zero,
			wantReason: ReasonThreshold,
		},
		{
			name:       "lower tier",
			cfg:        twoTiers,
			req:        Request{Fulfillment: Delivery, Subtotal: d("25")},
			wantFee:    d("4.99"),
			wantReason: ReasonTier,
		},
		{
			name:       "upper open tier",
			cfg:        twoTiers,
			req:        Request{Fulfillment: Delivery, Subtotal: d("30")},
			wantFee:    decimal.Zero,
			wantReason: ReasonTier,
		},
		{
			name:       "gap between tiers falls back to the tier below",
			cfg:        twoTiers,
			req:        Request{Fulfillment: Delivery, Subtotal: d("29.995")},
			wantFee:    d("4.99"),
			wantReason: ReasonTier,
		},
		{
			name: "percentage fee",
			cfg: Config{Tiers: []Tier{
				{Min: d("0"), FeePercent: nd("10")},
			}},
			req:        Request{Fulfillment: Delivery, Subtotal: d("42")},
			wantFee:    d("4.2"),
			wantReason: ReasonTier,
		},
		{
			name:       "no tiers",
			req:        Request{Fulfillment: Delivery, Subtotal: d("42")},
			wantFee:    decimal.Zero,
			wantReason: ReasonNoTier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.cfg, tt.req)

			assert.True(t, tt.wantFee.Equal(got.Fee), "expected fee %s, got %s", tt.wantFee, got.Fee)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.False(t, got.Fee.IsNegative())
		})
	}
}

func TestResolver_AdvisoryTowardFreeTier(t *testing.T) {
	got := Resolver{CurrencySymbol: "€"}.Resolve(twoTiers, Request{Fulfillment: Delivery, Subtotal: d("25")})

	require.NotNil(t, got.Advisory)
	assert.Equal(t, "€5.00 more for free shipping", got.Advisory.Message)
	assert.True(t, d("30").Equal(got.Advisory.Target))
	assert.True(t, d("5").Equal(got.Advisory.Remaining))
	assert.Equal(t, "83.3", got.Advisory.Progress.StringFixed(1))
}

func TestResolver_AdvisoryPicksCheapestThenNearest(t *testing.T) {
	cfg := Config{Tiers: []Tier{
		{Min: d("0"), Max: nd("19.99"), Fee: d("6")},
		{Min: d("20"), Max: nd("39.99"), Fee: d("3")},
		{Min: d("40"), Max: nd("59.99"), Fee: d("1.99")},
		{Min: d("60"), Fee: d("1.99")},
	}}

	got := Resolver{CurrencySymbol: "$"}.Resolve(cfg, Request{Fulfillment: Delivery, Subtotal: d("10")})

	require.NotNil(t, got.Advisory)
	assert.True(t, d("40").Equal(got.Advisory.Target))
	assert.Equal(t, "$30.00 more for $1.99 shipping", got.Advisory.Message)
	assert.Equal(t, "25", got.Advisory.Progress.String())
}

func TestResolver_AdvisoryFallsBackToThreshold(t *testing.T) {
	cfg := Config{
		Tiers:                 []Tier{{Min: d("0"), Fee: d("3.5")}},
		FreeShippingThreshold: nd("80"),
	}

	got := Resolver{CurrencySymbol: "€"}.Resolve(cfg, Request{Fulfillment: Delivery, Subtotal: d("60")})

	require.NotNil(t, got.Advisory)
	assert.Equal(t, "€20.00 more for free shipping", got.Advisory.Message)
	assert.Equal(t, "75", got.Advisory.Progress.String())
}

func TestResolver_NoAdvisoryWhenNothingCheaper(t *testing.T) {
	cfg := Config{Tiers: []Tier{{Min: d("0"), Fee: d("3.5")}, {Min: d("50"), Fee: d("4")}}}

	got := Resolver{}.Resolve(cfg, Request{Fulfillment: Delivery, Subtotal: d("10")})
	assert.Nil(t, got.Advisory)
}

func TestProgress_ZeroTarget(t *testing.T) {
	assert.True(t, hundred.Equal(progress(decimal.Zero, decimal.Zero)))
}

func TestParseFulfillment(t *testing.T) {
	f, err := ParseFulfillment("")
	require.NoError(t, err)
	assert.Equal(t, Delivery, f)

	f, err = ParseFulfillment("pickup")
	require.NoError(t, err)
	assert.Equal(t, Pickup, f)

	_, err = ParseFulfillment("drone")
	require.ErrorIs(t, err, ErrUnknownFulfillment)
}
