package main

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/freshcart/internal/domain/campaign"
	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/domain/shipping"
)

// fixture is the layout of the seed YAML file.
type fixture struct {
	Products  []productYAML  `yaml:"products"`
	Campaigns []campaignYAML `yaml:"campaigns"`
	Coupons   []couponYAML   `yaml:"coupons"`
	Shipping  shippingYAML   `yaml:"shipping"`
}

type productYAML struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Price    decimal.Decimal `yaml:"price"`
	Category string          `yaml:"category"`
	Stock    int             `yaml:"stock"`
	Variants []struct {
		ID    string          `yaml:"id"`
		Name  string          `yaml:"name"`
		Price decimal.Decimal `yaml:"price"`
		Stock int             `yaml:"stock"`
	} `yaml:"variants"`
	Image struct {
		Thumbnail string `yaml:"thumbnail"`
		Mobile    string `yaml:"mobile"`
		Tablet    string `yaml:"tablet"`
		Desktop   string `yaml:"desktop"`
	} `yaml:"image"`
}

type campaignYAML struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Type        string              `yaml:"type"`
	Percent     decimal.Decimal     `yaml:"percent"`
	Amount      decimal.Decimal     `yaml:"amount"`
	Buy         int                 `yaml:"buy"`
	Get         int                 `yaml:"get"`
	MaxDiscount decimal.NullDecimal `yaml:"max_discount"`
	MinPurchase decimal.NullDecimal `yaml:"min_purchase"`
	ApplyToAll  bool                `yaml:"apply_to_all"`
	Categories  []string            `yaml:"categories"`
	Products    []string            `yaml:"products"`
	Priority    int                 `yaml:"priority"`
	UsageLimit  int                 `yaml:"usage_limit"`
	StartsAt    *time.Time          `yaml:"starts_at"`
	EndsAt      *time.Time          `yaml:"ends_at"`
}

type couponYAML struct {
	Code        string              `yaml:"code"`
	Type        string              `yaml:"type"`
	Value       decimal.Decimal     `yaml:"value"`
	MinItems    int                 `yaml:"min_items"`
	MinPurchase decimal.NullDecimal `yaml:"min_purchase"`
	MaxDiscount decimal.NullDecimal `yaml:"max_discount"`
	Description string              `yaml:"description"`
	ValidFrom   *time.Time          `yaml:"valid_from"`
	ValidUntil  *time.Time          `yaml:"valid_until"`
	MaxUses     int                 `yaml:"max_uses"`
}

type shippingYAML struct {
	FreeThreshold decimal.NullDecimal `yaml:"free_threshold"`
	Tiers         []struct {
		Min        decimal.Decimal     `yaml:"min"`
		Max        decimal.NullDecimal `yaml:"max"`
		Fee        decimal.Decimal     `yaml:"fee"`
		FeePercent decimal.NullDecimal `yaml:"fee_percent"`
	} `yaml:"tiers"`
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixture")
	}
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse fixture")
	}
	return &f, nil
}

func (f *fixture) products() []product.Product {
	out := make([]product.Product, len(f.Products))
	for i, p := range f.Products {
		out[i] = product.Product{
			ID:         p.ID,
			Name:       p.Name,
			Price:      p.Price,
			CategoryID: p.Category,
			Stock:      p.Stock,
			Image: product.Image{
				Thumbnail: p.Image.Thumbnail,
				Mobile:    p.Image.Mobile,
				Tablet:    p.Image.Tablet,
				Desktop:   p.Image.Desktop,
			},
		}
		for _, v := range p.Variants {
			out[i].Variants = append(out[i].Variants, product.Variant{
				ID: v.ID, Name: v.Name, Price: v.Price, Stock: v.Stock,
			})
		}
	}
	return out
}

func (f *fixture) campaigns() ([]campaign.Campaign, error) {
	out := make([]campaign.Campaign, len(f.Campaigns))
	for i, c := range f.Campaigns {
		typ := campaign.Type(c.Type)
		if !typ.Valid() {
			return nil, errors.Errorf("campaign %q: unknown type %q", c.ID, c.Type)
		}
		out[i] = campaign.Campaign{
			ID:              c.ID,
			Name:            c.Name,
			Type:            typ,
			DiscountPercent: c.Percent,
			DiscountAmount:  c.Amount,
			BuyQuantity:     c.Buy,
			GetQuantity:     c.Get,
			MaxDiscount:     c.MaxDiscount,
			MinPurchase:     c.MinPurchase,
			ApplyToAll:      c.ApplyToAll,
			CategoryIDs:     c.Categories,
			ProductIDs:      c.Products,
			Priority:        c.Priority,
			UsageLimit:      c.UsageLimit,
			StartsAt:        c.StartsAt,
			EndsAt:          c.EndsAt,
		}
	}
	return out, nil
}

func (f *fixture) coupons() ([]coupon.Rule, error) {
	out := make([]coupon.Rule, len(f.Coupons))
	for i, c := range f.Coupons {
		typ := coupon.DiscountType(c.Type)
		if typ != coupon.DiscountPercentage && typ != coupon.DiscountFixed {
			return nil, errors.Errorf("coupon %q: unknown type %q", c.Code, c.Type)
		}
		out[i] = coupon.Rule{
			Code:         coupon.NormalizeCode(c.Code),
			DiscountType: typ,
			Value:        c.Value,
			MinItems:     c.MinItems,
			MinPurchase:  c.MinPurchase,
			MaxDiscount:  c.MaxDiscount,
			Description:  c.Description,
			ValidFrom:    c.ValidFrom,
			ValidUntil:   c.ValidUntil,
			MaxUses:      c.MaxUses,
		}
	}
	return out, nil
}

func (f *fixture) shipping() shipping.Config {
	cfg := shipping.Config{FreeShippingThreshold: f.Shipping.FreeThreshold}
	for _, t := range f.Shipping.Tiers {
		cfg.Tiers = append(cfg.Tiers, shipping.Tier{
			Min: t.Min, Max: t.Max, Fee: t.Fee, FeePercent: t.FeePercent,
		})
	}
	return cfg
}
