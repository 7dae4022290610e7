package campaign

import (
	"strings"

	"github.com/xenking/freshcart/internal/domain/cart"
)

// Scope tags a campaign result as store-wide or restricted.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProduct Scope = "product"
)

// Scope returns the scope tag of the campaign.
func (c Campaign) Scope() Scope {
	if c.ApplyToAll {
		return ScopeGlobal
	}
	return ScopeProduct
}

// Covers reports whether the campaign discounts the given line.
// Free-shipping campaigns never cover a line.
func (c Campaign) Covers(line cart.Line) bool {
	if c.Type == TypeFreeShipping {
		return false
	}
	return c.Reaches(line)
}

// Reaches applies the scope rule without regard to the campaign type. It is
// used to decide whether a cart-wide benefit such as free shipping touches
// the cart.
func (c Campaign) Reaches(line cart.Line) bool {
	if c.ApplyToAll {
		return true
	}
	if containsID(c.CategoryIDs, line.CategoryID) {
		return true
	}
	return containsID(c.ProductIDs, line.ProductID)
}

// ReachesAny reports whether any line is within the campaign scope.
func (c Campaign) ReachesAny(lines []cart.Line) bool {
	for _, l := range lines {
		if c.Reaches(l) {
			return true
		}
	}
	return false
}

// NormalizeID folds an identifier to the form used for scope matching.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func containsID(ids []string, id string) bool {
	id = NormalizeID(id)
	if id == "" {
		return false
	}
	for _, candidate := range ids {
		if NormalizeID(candidate) == id {
			return true
		}
	}
	return false
}
