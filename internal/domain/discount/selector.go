package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Select picks the tier with the highest rate among those matching the
// aggregate. Ties keep the earliest tier in slice order. It reports false
// when nothing matches or when either aggregate is zero.
func Select(tiers []Tier, totalQuantity int, totalPrice decimal.Decimal) (Tier, bool) {
	if totalQuantity == 0 || totalPrice.IsZero() {
		return Tier{}, false
	}

	var (
		best  Tier
		found bool
	)
	for _, t := range tiers {
		if !t.Matches(totalQuantity, totalPrice) {
			continue
		}
		if !found || t.Rate.GreaterThan(best.Rate) {
			best = t
			found = true
		}
	}
	return best, found
}

// Selector applies Select to a fresh snapshot of the tier table.
type Selector struct {
	repo Repository
}

// NewSelector creates a Selector backed by the given Repository.
func NewSelector(repo Repository) *Selector {
	return &Selector{repo: repo}
}

// Select loads the tiers and returns the best match for the aggregate.
func (s *Selector) Select(ctx context.Context, totalQuantity int, totalPrice decimal.Decimal) (Tier, bool, error) {
	if totalQuantity == 0 || totalPrice.IsZero() {
		return Tier{}, false, nil
	}
	tiers, err := s.repo.List(ctx)
	if err != nil {
		return Tier{}, false, errors.Wrap(err, "list discount tiers")
	}
	t, ok := Select(tiers, totalQuantity, totalPrice)
	return t, ok, nil
}

// List returns all configured tiers.
func (s *Selector) List(ctx context.Context) ([]Tier, error) {
	tiers, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list discount tiers")
	}
	return tiers, nil
}

// Create validates and stores a new tier.
func (s *Selector) Create(ctx context.Context, t Tier) (*Tier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &t); err != nil {
		return nil, errors.Wrap(err, "create discount tier")
	}
	return &t, nil
}
