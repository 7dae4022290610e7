package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

type mockProductRepo struct {
	products map[string]product.Product
	err      error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, m.err
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCampaignRepo struct {
	campaigns []campaign.Campaign
	err       error
	used      []string
}

func (m *mockCampaignRepo) ListActive(_ context.Context, _ time.Time) ([]campaign.Campaign, error) {
	return m.campaigns, m.err
}

func (m *mockCampaignRepo) IncrementUsage(_ context.Context, id string) error {
	m.used = append(m.used, id)
	return nil
}

type mockShippingRepo struct {
	cfg shipping.Config
	err error
}

func (m *mockShippingRepo) Load(_ context.Context) (shipping.Config, error) {
	return m.cfg, m.err
}

type mockCouponValidator struct {
	discount *coupon.Discount
	err      error
}

func (m *mockCouponValidator) Validate(_ context.Context, _ string, _ []coupon.Item, _ decimal.Decimal) (*coupon.Discount, error) {
	return m.discount, m.err
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errors.New("redis down") }
func (failingStore) Set(context.Context, string, string) error { return errors.New("redis down") }
func (failingStore) Clear(context.Context, string) error { return errors.New("redis down") }

var catalog = map[string]product.Product{
	"bread": {ID: "bread", Name: "Sourdough", Price: d("4.5"), CategoryID: "bakery", Stock: 20},
	"milk": {ID: "milk", Name: "Milk", Price: d("1.2"), CategoryID: "dairy", Stock: 50},
	"cheese": {
		ID: "cheese", Name: "Cheddar", Price: d("6"), CategoryID: "dairy", Stock: 0,
		Variants: []product.Variant{
			{ID: "200g", Name: "200g", Price: d("6"), Stock: 5},
			{ID: "500g", Name: "500g", Price: d("13"), Stock: 2},
		},
	},
}

type fixture struct {
	products  *mockProductRepo
	campaigns *mockCampaignRepo
	shipping  *mockShippingRepo
	coupons   *mockCouponValidator
	store     SelectionStore
}

func newFixture() *fixture {
	return &fixture{
		products:  &mockProductRepo{products: catalog},
		campaigns: &mockCampaignRepo{},
		shipping:  &mockShippingRepo{},
		coupons:   &mockCouponValidator{err: coupon.ErrInvalidCoupon},
		store:     NewMemoryStore(),
	}
}

func (f *fixture) service(t *testing.T, opts Options) *Service {
	t.Helper()
	s, err := NewService(Deps{
		Products:   f.products,
		Campaigns:  f.campaigns,
		Shipping:   f.shipping,
		Coupons:    f.coupons,
		Selections: f.store,
	}, opts, metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	return s
}

func TestService_Price(t *testing.T) {
	f := newFixture()
	f.campaigns.campaigns = []campaign.Campaign{storeWide("ten", 0, "10")}
	f.coupons = &mockCouponValidator{discount: &coupon.Discount{Code: "ONE", Amount: d("1"), Description: "€1 off"}}
	s := f.service(t, Options{CurrencySymbol: "€"})

	got, err := s.Price(context.Background(), Request{
		SessionID:  "s1",
		Revision:   7,
		Items:      []Item{{ProductID: "bread", Quantity: 2}, {ProductID: "cheese", VariantID: "500g", Quantity: 1}},
		CouponCode: " one ",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), got.Revision)
	assert.Equal(t, "ONE", got.CouponCode)
	assert.NoError(t, got.CouponErr)
	assert.True(t, d("22").Equal(got.Subtotal))
	assert.True(t, d("2.2").Equal(got.CampaignDiscount))
	assert.True(t, d("1").Equal(got.CouponDiscount))
	assert.Equal(t, "Cheddar 500g", got.Lines[1].Name)
	assert.True(t, d("13").Equal(got.Lines[1].UnitPrice))
}

func TestService_CouponRejectionIsNotFatal(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "unknown code", err: coupon.ErrInvalidCoupon, wantErr: coupon.ErrInvalidCoupon},
		{name: "expired", err: coupon.ErrCouponExpired, wantErr: coupon.ErrCouponExpired},
		{name: "provider failure", err: errors.New("timeout"), wantErr: coupon.ErrInvalidCoupon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.coupons = &mockCouponValidator{err: tt.err}
			s := f.service(t, Options{})

			got, err := s.Price(context.Background(), Request{
				Items:      []Item{{ProductID: "milk", Quantity: 1}},
				CouponCode: "nope",
			})
			require.NoError(t, err)
			require.ErrorIs(t, got.CouponErr, tt.wantErr)
			require.ErrorIs(t, got.CouponErr, coupon.ErrInvalidCoupon)
			assert.True(t, got.CouponDiscount.IsZero())
			assert.True(t, d("1.2").Equal(got.Total))
		})
	}
}

func TestService_LineErrors(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		check func(t *testing.T, err error)
	}{
		{
			name:  "unknown product",
			items: []Item{{ProductID: "caviar", Quantity: 1}},
			check: func(t *testing.T, err error) {
				var target *ProductNotFoundError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "caviar", target.ProductID)
			},
		},
		{
			name:  "zero quantity",
			items: []Item{{ProductID: "milk", Quantity: 0}},
			check: func(t *testing.T, err error) {
				var target *InvalidQuantityError
				require.ErrorAs(t, err, &target)
			},
		},
		{
			name:  "unknown variant",
			items: []Item{{ProductID: "cheese", VariantID: "1kg", Quantity: 1}},
			check: func(t *testing.T, err error) {
				var target *VariantNotFoundError
				require.ErrorAs(t, err, &target)
			},
		},
		{
			name:  "variant stock exceeded",
			items: []Item{{ProductID: "cheese", VariantID: "500g", Quantity: 3}},
			check: func(t *testing.T, err error) {
				var target *InsufficientStockError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, 2, target.Available)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFixture().service(t, Options{})
			_, err := s.Price(context.Background(), Request{Items: tt.items})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestService_LoadFailure(t *testing.T) {
	f := newFixture()
	f.campaigns.err = errors.New("db down")
	s := f.service(t, Options{})

	_, err := s.Price(context.Background(), Request{Items: []Item{{ProductID: "milk", Quantity: 1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load campaigns")
}

func TestService_SelectionLifecycle(t *testing.T) {
	f := newFixture()
	f.campaigns.campaigns = []campaign.Campaign{storeWide("a", 1, "10"), storeWide("b", 1, "10")}
	s := f.service(t, Options{})
	ctx := context.Background()
	req := Request{SessionID: "shopper", Items: []Item{{ProductID: "bread", Quantity: 2}}}

	got, err := s.Price(ctx, req)
	require.NoError(t, err)
	assert.True(t, got.Selection.Pending)
	assert.True(t, got.CampaignDiscount.IsZero())

	got, err = s.Choose(ctx, req, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Selection.AppliedID)
	stored, _ := f.store.Get(ctx, "shopper")
	assert.Equal(t, "b", stored)

	got, err = s.Price(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Selection.AppliedID)
	assert.False(t, got.Selection.Pending)

	// Campaign b ends: the stored choice is dropped and the cart goes back to a single candidate.
	f.campaigns.campaigns = []campaign.Campaign{storeWide("a", 1, "10")}
	got, err = s.Price(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Selection.AppliedID)
	stored, _ = f.store.Get(ctx, "shopper")
	assert.Empty(t, stored)

	_, err = s.Choose(ctx, req, "b")
	require.ErrorIs(t, err, campaign.ErrNotCandidate)
}

func TestService_DismissPersistsTopRanked(t *testing.T) {
	f := newFixture()
	f.campaigns.campaigns = []campaign.Campaign{storeWide("b", 1, "10"), storeWide("a", 1, "10")}
	s := f.service(t, Options{})
	ctx := context.Background()

	got, err := s.Dismiss(ctx, Request{SessionID: "x", Items: []Item{{ProductID: "milk", Quantity: 10}}})
	require.NoError(t, err)
	assert.Equal(t, "a", got.Selection.AppliedID)

	stored, _ := f.store.Get(ctx, "x")
	assert.Equal(t, "a", stored)
}

func TestService_StoreFailureDoesNotBlockPricing(t *testing.T) {
	f := newFixture()
	f.store = failingStore{}
	f.campaigns.campaigns = []campaign.Campaign{storeWide("a", 1, "10")}
	s := f.service(t, Options{})

	got, err := s.Choose(context.Background(), Request{SessionID: "x", Items: []Item{{ProductID: "milk", Quantity: 1}}}, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Selection.AppliedID)

	_, err = s.Price(context.Background(), Request{SessionID: "x", Items: []Item{{ProductID: "milk", Quantity: 1}}})
	require.NoError(t, err)
}

func TestService_RepriceIgnoresStore(t *testing.T) {
	f := newFixture()
	f.campaigns.campaigns = []campaign.Campaign{storeWide("a", 1, "10"), storeWide("b", 1, "20")}
	require.NoError(t, f.store.Set(context.Background(), "x", "a"))
	s := f.service(t, Options{})

	got, err := s.Reprice(context.Background(), Request{SessionID: "x", Items: []Item{{ProductID: "milk", Quantity: 1}}}, "")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Selection.AppliedID)

	stored, _ := f.store.Get(context.Background(), "x")
	assert.Equal(t, "a", stored)
}

func TestService_PreviewProductUsesPerUnitFixed(t *testing.T) {
	f := newFixture()
	f.campaigns.campaigns = []campaign.Campaign{{
		ID: "bread-deal", Name: "Bread deal", Type: campaign.TypeFixedAmount,
		DiscountAmount: d("0.5"), ProductIDs: []string{"bread"},
	}}
	s := f.service(t, Options{CartFixed: campaign.FixedPerCart, ProductFixed: campaign.FixedPerUnit})

	got, err := s.PreviewProduct(context.Background(), "bread", "", 4)
	require.NoError(t, err)

	assert.True(t, d("18").Equal(got.Total))
	assert.True(t, d("2").Equal(got.Discount))
	assert.True(t, d("16").Equal(got.DiscountedTotal))
	assert.True(t, d("4").Equal(got.DiscountedUnitPrice))
	assert.Equal(t, "bread-deal", got.CampaignID)

	cartRes, err := s.Price(context.Background(), Request{Items: []Item{{ProductID: "bread", Quantity: 4}}})
	require.NoError(t, err)
	assert.True(t, d("0.5").Equal(cartRes.CampaignDiscount))
}

func TestService_PreviewProductNotFound(t *testing.T) {
	s := newFixture().service(t, Options{})

	_, err := s.PreviewProduct(context.Background(), "caviar", "", 1)
	var target *ProductNotFoundError
	require.ErrorAs(t, err, &target)
}
