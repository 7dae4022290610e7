package pricing

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/coupon"
	"github.com/xenking/freshcart/internal/domain/product"
)

// Item is a cart entry as submitted by the shopper.
type Item struct {
	ProductID string
	VariantID string
	Quantity  int
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// VariantNotFoundError indicates the product has no such variant.
type VariantNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s of product %s not found", e.VariantID, e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a line asks for more units than available.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d of product %s available, %d requested", e.Available, e.ProductID, e.Requested)
}

// ResolveLines turns submitted items into priced cart lines, fetching all
// products in a single batch.
func ResolveLines(ctx context.Context, products product.Repository, items []Item) ([]cart.Line, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	lines := make([]cart.Line, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		l, err := lineFor(p, item)
		if err != nil {
			return nil, err
		}
		lines[i] = l
	}
	return lines, nil
}

func lineFor(p *product.Product, item Item) (cart.Line, error) {
	l := cart.Line{
		ProductID:  p.ID,
		CategoryID: p.CategoryID,
		Name:       p.Name,
		UnitPrice:  p.Price,
		Quantity:   item.Quantity,
	}
	stock := p.Stock

	if item.VariantID != "" {
		v, ok := p.Variant(item.VariantID)
		if !ok {
			return cart.Line{}, &VariantNotFoundError{ProductID: p.ID, VariantID: item.VariantID}
		}
		l.VariantID = v.ID
		l.UnitPrice = v.Price
		l.Name = p.Name + " " + v.Name
		stock = v.Stock
	}

	if item.Quantity > stock {
		return cart.Line{}, &InsufficientStockError{
			ProductID: p.ID,
			VariantID: item.VariantID,
			Requested: item.Quantity,
			Available: stock,
		}
	}
	return l, nil
}

// CouponItems converts cart lines to the shape coupon validation expects.
func CouponItems(lines []cart.Line) []coupon.Item {
	items := make([]coupon.Item, len(lines))
	for i, l := range lines {
		items[i] = coupon.Item{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}
	return items
}
