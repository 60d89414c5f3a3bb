package discount

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier is a pricing rule: an order whose total quantity falls into
// [MinQuantity, MaxQuantity] and whose total price reaches MinTotalPrice
// qualifies for Rate.
type Tier struct {
	ID            int64
	MinQuantity   int
	MaxQuantity   int
	MinTotalPrice decimal.Decimal
	Rate          decimal.Decimal
}

// InvalidTierError indicates a tier definition that breaks a range invariant.
type InvalidTierError struct {
	Field  string
	Reason string
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("invalid discount tier: %s %s", e.Field, e.Reason)
}

var one = decimal.NewFromInt(1)

// Stored scales of the rate and the price threshold.
const (
	rateScale  = 4
	priceScale = 2
)

// Validate checks the tier's ranges.
func (t Tier) Validate() error {
	switch {
	case t.MinQuantity < 0:
		return &InvalidTierError{Field: "min_quantity", Reason: "must not be negative"}
	case t.MaxQuantity < t.MinQuantity:
		return &InvalidTierError{Field: "max_quantity", Reason: "must not be less than min_quantity"}
	case t.MinTotalPrice.IsNegative():
		return &InvalidTierError{Field: "min_total_price", Reason: "must not be negative"}
	case !t.MinTotalPrice.Equal(t.MinTotalPrice.Truncate(priceScale)):
		return &InvalidTierError{Field: "min_total_price", Reason: "must have at most 2 decimal places"}
	case t.Rate.IsNegative() || t.Rate.GreaterThan(one):
		return &InvalidTierError{Field: "discount_rate", Reason: "must be within [0, 1]"}
	case !t.Rate.Equal(t.Rate.Truncate(rateScale)):
		return &InvalidTierError{Field: "discount_rate", Reason: "must have at most 4 decimal places"}
	}
	return nil
}

// Matches reports whether the tier applies to the given aggregate.
func (t Tier) Matches(totalQuantity int, totalPrice decimal.Decimal) bool {
	return t.MinQuantity <= totalQuantity &&
		totalQuantity <= t.MaxQuantity &&
		t.MinTotalPrice.LessThanOrEqual(totalPrice)
}

// Repository provides access to the discount tier table.
type Repository interface {
	// List returns every tier ordered by ID.
	List(ctx context.Context) ([]Tier, error)
	Create(ctx context.Context, t *Tier) error
}
