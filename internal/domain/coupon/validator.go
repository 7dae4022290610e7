package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator validates a coupon code against a cart and returns the discount
// it would give. Validation never consumes a redemption.
type Validator interface {
	Validate(ctx context.Context, code string, items []Item, subtotal decimal.Decimal) (*Discount, error)
}

// Redeemer records that a coupon was used by a placed order. Release undoes
// a Redeem whose order could not be stored.
type Redeemer interface {
	Redeem(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

var (
	_ Validator = (*RepoValidator)(nil)
	_ Redeemer  = (*RepoValidator)(nil)
)

// RepoValidator implements Validator and Redeemer on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for the given code, checks temporal
// validity and usage limits, and applies it to the cart.
func (v *RepoValidator) Validate(ctx context.Context, code string, items []Item, subtotal decimal.Decimal) (*Discount, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}

	d, err := Apply(rule, items, subtotal)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Redeem increments the usage counter of code.
func (v *RepoValidator) Redeem(ctx context.Context, code string) error {
	if err := v.repo.IncrementUses(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "increment coupon uses")
	}
	return nil
}

// Release decrements the usage counter of code.
func (v *RepoValidator) Release(ctx context.Context, code string) error {
	if err := v.repo.DecrementUses(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "decrement coupon uses")
	}
	return nil
}
