package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/freshcart/internal/domain/auth"
	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/order"
	"github.com/xenking/freshcart/internal/domain/pricing"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

var pepper = []byte("test-pepper")

type mockProductRepo struct {
	products []product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, err := m.GetByID(context.Background(), id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockCampaignRepo struct {
	campaigns []campaign.Campaign
	used      []string
}

func (m *mockCampaignRepo) ListActive(_ context.Context, _ time.Time) ([]campaign.Campaign, error) {
	return m.campaigns, nil
}

func (m *mockCampaignRepo) IncrementUsage(_ context.Context, id string) error {
	m.used = append(m.used, id)
	return nil
}

type mockShippingRepo struct{}

func (mockShippingRepo) Load(_ context.Context) (shipping.Config, error) {
	return shipping.Config{
		Tiers: []shipping.Tier{{Min: decimal.Zero, Fee: decimal.RequireFromString("4.99")}},
	}, nil
}

type mockCouponRepo struct {
	rules    map[string]coupon.Rule
	redeemed []string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	r, ok := m.rules[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &r, nil
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	m.redeemed = append(m.redeemed, code)
	return nil
}

func (m *mockCouponRepo) DecrementUses(_ context.Context, code string) error {
	for i, c := range m.redeemed {
		if c == code {
			m.redeemed = append(m.redeemed[:i], m.redeemed[i+1:]...)
			break
		}
	}
	return nil
}

type mockAPIKeyRepo struct {
	keys map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}

type mockOrderRepo struct {
	created []*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.created = append(m.created, o)
	return nil
}

type env struct {
	server    *httptest.Server
	campaigns *mockCampaignRepo
	coupons   *mockCouponRepo
	orders    *mockOrderRepo
}

func newEnv(t *testing.T) *env {
	t.Helper()

	products := &mockProductRepo{products: []product.Product{
		{
			ID: "apple", Name: "Apple", Price: decimal.NewFromInt(1), CategoryID: "fruit", Stock: 100,
			Image: product.Image{Thumbnail: "/apple-thumb.jpg"},
		},
		{
			ID: "tea", Name: "Tea", Price: decimal.NewFromInt(5), CategoryID: "drinks", Stock: 10,
			Variants: []product.Variant{{ID: "green", Name: "Green", Price: decimal.NewFromInt(6), Stock: 1}},
		},
	}}
	e := &env{
		campaigns: &mockCampaignRepo{campaigns: []campaign.Campaign{{
			ID: "c10", Name: "Ten off", Type: campaign.TypePercentage,
			DiscountPercent: decimal.NewFromInt(10), ApplyToAll: true, Priority: 1,
		}}},
		coupons: &mockCouponRepo{rules: map[string]coupon.Rule{
			"BIG": {
				Code: "BIG", DiscountType: coupon.DiscountFixed, Value: decimal.NewFromInt(5),
				MinPurchase: decimal.NewNullDecimal(decimal.NewFromInt(20)),
			},
			"HALF": {
				Code: "HALF", DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(50),
				Description: "Half off",
			},
		}},
		orders: &mockOrderRepo{},
	}
	validator := coupon.NewRepoValidator(e.coupons)

	pricer, err := pricing.NewService(pricing.Deps{
		Products:   products,
		Campaigns:  e.campaigns,
		Shipping:   mockShippingRepo{},
		Coupons:    validator,
		Selections: pricing.NewMemoryStore(),
	}, pricing.Options{
		CartFixed:      campaign.FixedPerCart,
		ProductFixed:   campaign.FixedPerUnit,
		CurrencySymbol: "€",
	}, metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)

	orders := order.NewService(pricer, validator, e.campaigns, e.orders)
	security := NewSecurity(&mockAPIKeyRepo{keys: map[string]*auth.APIKeyInfo{
		auth.HashKey("writer", pepper): {ID: "k1", KeyHash: auth.HashKey("writer", pepper), Scopes: []string{ScopeOrders}},
		auth.HashKey("reader", pepper): {ID: "k2", KeyHash: auth.HashKey("reader", pepper)},
	}}, pepper)

	h := New(Config{ImageBaseURL: "https://cdn.test"}, products, pricer, validator, orders, security)
	r := chi.NewRouter()
	h.Register(r)

	e.server = httptest.NewServer(r)
	t.Cleanup(e.server.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, body string, header http.Header) (int, map[string]jx.Raw) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	fields := map[string]jx.Raw{}
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Object {
		require.NoError(t, d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			raw, err := d.Raw()
			fields[string(key)] = raw
			return err
		}))
	}
	return resp.StatusCode, fields
}

func num(t *testing.T, raw jx.Raw) float64 {
	t.Helper()
	v, err := jx.DecodeBytes(raw).Float64()
	require.NoError(t, err)
	return v
}

func str(t *testing.T, raw jx.Raw) string {
	t.Helper()
	v, err := jx.DecodeBytes(raw).Str()
	require.NoError(t, err)
	return v
}

func TestProducts(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, http.MethodGet, "/api/product/apple", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Apple", str(t, body["name"]))
	assert.Equal(t, 1.0, num(t, body["price"]))
	assert.Contains(t, body["image"].String(), "https://cdn.test/apple-thumb.jpg")

	status, body = e.do(t, http.MethodGet, "/api/product/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "product not found", str(t, body["message"]))
}

func TestPriceProduct(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		path   string
		status int
		check  func(t *testing.T, body map[string]jx.Raw)
	}{
		{
			name:   "Default quantity",
			path:   "/api/product/apple/price",
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]jx.Raw) {
				assert.Equal(t, 1.0, num(t, body["total"]))
				assert.Equal(t, 0.9, num(t, body["discountedTotal"]))
				assert.Equal(t, "c10", str(t, body["campaignId"]))
			},
		},
		{
			name:   "Variant",
			path:   "/api/product/tea/price?variantId=green&quantity=1",
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]jx.Raw) {
				assert.Equal(t, "green", str(t, body["variantId"]))
				assert.Equal(t, 6.0, num(t, body["unitPrice"]))
				assert.Equal(t, 5.4, num(t, body["discountedUnitPrice"]))
			},
		},
		{name: "Bad quantity", path: "/api/product/apple/price?quantity=abc", status: http.StatusBadRequest},
		{name: "Zero quantity", path: "/api/product/apple/price?quantity=0", status: http.StatusUnprocessableEntity},
		{name: "Over stock", path: "/api/product/tea/price?variantId=green&quantity=2", status: http.StatusConflict},
		{name: "Unknown product", path: "/api/product/missing/price", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, http.MethodGet, tt.path, "", nil)
			require.Equal(t, tt.status, status)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestPriceCart(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, http.MethodPost, "/api/cart/price",
		`{"revision":7,"items":[{"productId":"apple","quantity":3}],"couponCode":"half"}`, nil)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, int64(7), int64(num(t, body["revision"])))
	assert.Equal(t, 3.0, num(t, body["subtotal"]))
	assert.Equal(t, 0.3, num(t, body["campaignDiscount"]))
	assert.Equal(t, 1.5, num(t, body["couponDiscount"]))
	assert.Equal(t, 4.99, num(t, body["shippingFee"]))
	assert.Equal(t, "HALF", str(t, body["couponCode"]))
	assert.NotContains(t, body, "couponError")
	assert.Contains(t, body["campaign"].String(), `"appliedId":"c10"`)
}

func TestPriceCartCouponRejected(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, http.MethodPost, "/api/cart/price",
		`{"items":[{"productId":"apple","quantity":1}],"couponCode":"BIG","fulfillment":"pickup"}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cart below coupon minimum purchase", str(t, body["couponError"]))
	assert.Equal(t, 0.0, num(t, body["couponDiscount"]))
	assert.Equal(t, 0.0, num(t, body["shippingFee"]))
	assert.Equal(t, "pickup", str(t, body["shippingReason"]))
}

func TestCartErrors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "Malformed JSON", path: "/api/cart/price", body: `{`, status: http.StatusBadRequest},
		{name: "Empty body", path: "/api/cart/price", body: ``, status: http.StatusBadRequest},
		{
			name:   "Unknown fulfillment",
			path:   "/api/cart/price",
			body:   `{"items":[],"fulfillment":"drone"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Unknown product",
			path:   "/api/cart/price",
			body:   `{"items":[{"productId":"nope","quantity":1}]}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "Choose without campaign",
			path:   "/api/cart/campaign",
			body:   `{"items":[{"productId":"apple","quantity":1}]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Choose unknown campaign",
			path:   "/api/cart/campaign",
			body:   `{"items":[{"productId":"apple","quantity":1}],"campaignId":"c99"}`,
			status: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := e.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestChooseAndDismiss(t *testing.T) {
	e := newEnv(t)
	session := http.Header{SessionHeader: {"s1"}}

	status, body := e.do(t, http.MethodPost, "/api/cart/campaign",
		`{"items":[{"productId":"apple","quantity":2}],"campaignId":"c10"}`, session)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.2, num(t, body["campaignDiscount"]))

	status, body = e.do(t, http.MethodPost, "/api/cart/campaign/dismiss",
		`{"items":[{"productId":"apple","quantity":2}]}`, session)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["campaign"].String(), `"pending":false`)
}

func TestValidateCoupon(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, http.MethodPost, "/api/coupon/validate",
		`{"code":"half","items":[{"productId":"apple","quantity":4}],"subtotal":1000}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "HALF", str(t, body["code"]))
	assert.Equal(t, 2.0, num(t, body["discount"]))
	assert.Equal(t, "Half off", str(t, body["description"]))

	status, body = e.do(t, http.MethodPost, "/api/coupon/validate",
		`{"code":"BIG","items":[{"productId":"apple","quantity":4}]}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "cart below coupon minimum purchase", str(t, body["message"]))

	status, _ = e.do(t, http.MethodPost, "/api/coupon/validate",
		`{"items":[{"productId":"apple","quantity":4}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Empty(t, e.coupons.redeemed)
}

func TestPlaceOrder(t *testing.T) {
	const orderBody = `{"items":[{"productId":"apple","quantity":3,"discountedUnitPrice":%s,"campaignId":"c10"}],` +
		`"couponCode":"half","fulfillment":"pickup"}`

	tests := []struct {
		name   string
		key    string
		price  string
		status int
	}{
		{name: "Missing key", price: "0.9", status: http.StatusUnauthorized},
		{name: "Unknown key", key: "guess", price: "0.9", status: http.StatusUnauthorized},
		{name: "Missing scope", key: "reader", price: "0.9", status: http.StatusForbidden},
		{name: "Stale price", key: "writer", price: "1.0", status: http.StatusConflict},
		{name: "Created", key: "writer", price: "0.9", status: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			header := http.Header{}
			if tt.key != "" {
				header.Set(APIKeyHeader, tt.key)
			}

			status, body := e.do(t, http.MethodPost, "/api/order",
				strings.Replace(orderBody, "%s", tt.price, 1), header)
			require.Equal(t, tt.status, status)

			if tt.status != http.StatusCreated {
				assert.Empty(t, e.orders.created)
				assert.Empty(t, e.coupons.redeemed)
				return
			}
			require.Len(t, e.orders.created, 1)
			assert.Equal(t, e.orders.created[0].ID, str(t, body["id"]))
			assert.Equal(t, 3.0, num(t, body["subtotal"]))
			assert.Equal(t, 0.3, num(t, body["campaignDiscount"]))
			assert.Equal(t, 1.5, num(t, body["couponDiscount"]))
			assert.Equal(t, 1.2, num(t, body["total"]))
			assert.Equal(t, "pickup", str(t, body["fulfillment"]))
			assert.Equal(t, []string{"HALF"}, e.coupons.redeemed)
			assert.Equal(t, []string{"c10"}, e.campaigns.used)
		})
	}
}

func TestPlaceOrderEmpty(t *testing.T) {
	e := newEnv(t)
	header := http.Header{}
	header.Set(APIKeyHeader, "writer")

	status, body := e.do(t, http.MethodPost, "/api/order", `{"items":[]}`, header)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, order.ErrEmptyItems.Error(), str(t, body["message"]))
}
