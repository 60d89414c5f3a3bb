package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Service serves catalog listings and searches.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the catalog narrowed by f.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	products, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Search matches the query against names and descriptions. Numeric
// queries additionally match IDs and prices exactly and are exempt from
// the minimum length.
func (s *Service) Search(ctx context.Context, query string) ([]Product, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return products, nil
}

// ParseQuery trims the raw query and detects the numeric branch.
func ParseQuery(raw string) (SearchQuery, error) {
	text := strings.TrimSpace(raw)
	if n, err := decimal.NewFromString(text); err == nil && text != "" {
		return SearchQuery{Text: text, Number: &n}, nil
	}
	if len([]rune(text)) < MinQueryLength {
		return SearchQuery{}, ErrQueryTooShort
	}
	return SearchQuery{Text: text}, nil
}
