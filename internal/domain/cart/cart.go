// Package cart defines the cart line shared by every pricing component.
package cart

import "github.com/shopspring/decimal"

// Line is a single resolved cart entry. UnitPrice is taken from the selected
// variant when one is set, otherwise from the product.
type Line struct {
	ProductID  string
	VariantID  string
	CategoryID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal returns the pre-discount sum of all line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Quantity returns the number of units across all lines.
func Quantity(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
