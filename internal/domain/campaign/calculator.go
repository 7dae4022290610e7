package campaign

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshcart/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// FixedMode selects how a FIXED_AMOUNT campaign is applied.
type FixedMode string

const (
	// FixedPerCart takes DiscountAmount once off everything the campaign covers.
	FixedPerCart FixedMode = "per_cart"
	// FixedPerUnit takes DiscountAmount off every covered unit.
	FixedPerUnit FixedMode = "per_unit"
)

// ParseFixedMode parses a FixedMode from configuration.
func ParseFixedMode(s string) (FixedMode, error) {
	switch m := FixedMode(s); m {
	case FixedPerCart, FixedPerUnit:
		return m, nil
	case "":
		return FixedPerCart, nil
	default:
		return "", errors.Errorf("unknown fixed amount mode %q", s)
	}
}

// Allocation is the share of a campaign discount carried by one cart line.
type Allocation struct {
	Line   int
	Amount decimal.Decimal
}

// Result is the outcome of applying one campaign to a cart.
type Result struct {
	Campaign Campaign
	Scope    Scope
	// Discount is the aggregate over all covered lines, capped and clamped.
	Discount decimal.Decimal
	Label    string
	// Products lists the names of covered lines for restricted campaigns.
	Products    []string
	Allocations []Allocation
}

// Calculator computes campaign discounts. The zero value applies
// FIXED_AMOUNT campaigns per cart.
type Calculator struct {
	Fixed FixedMode
}

// Apply computes the discount campaign c contributes to lines. ok is false
// when the campaign covers no line.
func (calc Calculator) Apply(c Campaign, lines []cart.Line) (res Result, ok bool) {
	var (
		covered      []int
		coveredTotal = decimal.Zero
	)
	for i, l := range lines {
		if l.Quantity <= 0 || !c.Covers(l) {
			continue
		}
		covered = append(covered, i)
		coveredTotal = coveredTotal.Add(l.Total())
	}
	if len(covered) == 0 {
		return Result{}, false
	}

	raw := calc.lineDiscounts(c, lines, covered, coveredTotal)

	sum := decimal.Zero
	for _, v := range raw {
		sum = sum.Add(v)
	}
	total := sum
	if c.MaxDiscount.Valid {
		total = decimal.Min(total, floorAtZero(c.MaxDiscount.Decimal))
	}
	total = clamp(total, coveredTotal)

	// Re-spread when the aggregate cap changed the sum.
	if !total.Equal(sum) {
		raw = allocateByWeight(total, raw)
	}

	res = Result{
		Campaign:    c,
		Scope:       c.Scope(),
		Discount:    total,
		Label:       c.Name,
		Allocations: make([]Allocation, len(covered)),
	}
	for k, idx := range covered {
		res.Allocations[k] = Allocation{Line: idx, Amount: raw[k]}
		if res.Scope == ScopeProduct && lines[idx].Name != "" {
			res.Products = append(res.Products, lines[idx].Name)
		}
	}
	return res, true
}

// LineDiscount returns the uncapped discount c gives a single line on its own.
func (calc Calculator) LineDiscount(c Campaign, line cart.Line) decimal.Decimal {
	if line.Quantity <= 0 || !c.Covers(line) {
		return decimal.Zero
	}
	total := line.Total()
	switch c.Type {
	case TypePercentage:
		return percentOf(total, c.DiscountPercent)
	case TypeFixedAmount:
		if calc.Fixed == FixedPerUnit {
			return fixedPerUnit(c, line)
		}
		return clamp(c.DiscountAmount, total)
	case TypeBuyXGetY:
		return buyXGetY(c, line)
	}
	return decimal.Zero
}

// lineDiscounts returns one uncapped amount per covered line.
func (calc Calculator) lineDiscounts(c Campaign, lines []cart.Line, covered []int, coveredTotal decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(covered))

	if c.Type == TypeFixedAmount && calc.Fixed != FixedPerUnit {
		weights := make([]decimal.Decimal, len(covered))
		for k, idx := range covered {
			weights[k] = lines[idx].Total()
		}
		return allocateByWeight(clamp(c.DiscountAmount, coveredTotal), weights)
	}

	for k, idx := range covered {
		out[k] = calc.LineDiscount(c, lines[idx])
	}
	return out
}

func percentOf(total, pct decimal.Decimal) decimal.Decimal {
	if !pct.IsPositive() {
		return decimal.Zero
	}
	return clamp(total.Mul(pct).Div(hundred), total)
}

func fixedPerUnit(c Campaign, line cart.Line) decimal.Decimal {
	per := c.DiscountAmount.Mul(decimal.NewFromInt(int64(line.Quantity)))
	return clamp(per, line.Total())
}

// buyXGetY gives (buy - get) free units for every complete set of buy units.
func buyXGetY(c Campaign, line cart.Line) decimal.Decimal {
	buy, get := c.BuyQuantity, c.GetQuantity
	if buy <= 0 || get < 0 || get >= buy || line.Quantity < buy {
		return decimal.Zero
	}
	sets := line.Quantity / buy
	free := decimal.NewFromInt(int64(sets * (buy - get)))
	return clamp(free.Mul(line.UnitPrice), line.Total())
}

// clamp bounds v to [0, upper].
func clamp(v, upper decimal.Decimal) decimal.Decimal {
	v = floorAtZero(v)
	if v.GreaterThan(upper) {
		return floorAtZero(upper)
	}
	return v
}

func floorAtZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// allocateByWeight splits amount across weights proportionally. The last
// positive share absorbs the remainder so the parts always sum to amount.
func allocateByWeight(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(weights))
	for i := range out {
		out[i] = decimal.Zero
	}
	if len(weights) == 0 || amount.IsZero() {
		return out
	}

	total := decimal.Zero
	last := -1
	for i, w := range weights {
		if w.IsPositive() {
			total = total.Add(w)
			last = i
		}
	}
	if last < 0 {
		// No usable weights: spread evenly.
		n := decimal.NewFromInt(int64(len(weights)))
		share := amount.Div(n)
		rest := amount
		for i := range out[:len(out)-1] {
			out[i] = share
			rest = rest.Sub(share)
		}
		out[len(out)-1] = rest
		return out
	}

	rest := amount
	for i, w := range weights {
		if i == last {
			break
		}
		if !w.IsPositive() {
			continue
		}
		share := amount.Mul(w).Div(total)
		out[i] = share
		rest = rest.Sub(share)
	}
	out[last] = rest
	return out
}
