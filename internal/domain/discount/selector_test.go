package discount

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type mockTierRepo struct {
	tiers   []Tier
	err     error
	created *Tier
	calls   int
}

func (m *mockTierRepo) List(_ context.Context) ([]Tier, error) {
	m.calls++
	return m.tiers, m.err
}

func (m *mockTierRepo) Create(_ context.Context, t *Tier) error {
	if m.err != nil {
		return m.err
	}
	t.ID = int64(len(m.tiers) + 1)
	m.created = t
	return nil
}

func TestSelect(t *testing.T) {
	tiers := []Tier{
		{ID: 1, MinQuantity: 5, MaxQuantity: 20, MinTotalPrice: d("0"), Rate: d("0.1")},
		{ID: 2, MinQuantity: 10, MaxQuantity: 50, MinTotalPrice: d("100"), Rate: d("0.15")},
		{ID: 3, MinQuantity: 1, MaxQuantity: 100, MinTotalPrice: d("1000"), Rate: d("0.3")},
		{ID: 4, MinQuantity: 15, MaxQuantity: 30, MinTotalPrice: d("0"), Rate: d("0.15")},
	}

	tests := []struct {
		name     string
		qty      int
		price    decimal.Decimal
		wantID   int64
		wantNone bool
	}{
		{name: "zero quantity", qty: 0, price: d("50"), wantNone: true},
		{name: "zero price", qty: 10, price: d("0"), wantNone: true},
		{name: "below every range", qty: 4, price: d("50"), wantNone: true},
		{name: "single match", qty: 10, price: d("50"), wantID: 1},
		{name: "inclusive lower bound", qty: 5, price: d("1"), wantID: 1},
		{name: "inclusive upper bound", qty: 20, price: d("1"), wantID: 4},
		{name: "highest rate wins", qty: 10, price: d("100"), wantID: 2},
		{name: "tie keeps first tier", qty: 16, price: d("100"), wantID: 2},
		{name: "price threshold unlocks tier", qty: 60, price: d("1000"), wantID: 3},
		{name: "price threshold not reached", qty: 60, price: d("999.99"), wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Select(tiers, tt.qty, tt.price)
			if tt.wantNone {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestSelect_ResultAlwaysMatchesWithMaxRate(t *testing.T) {
	tiers := []Tier{
		{ID: 1, MinQuantity: 1, MaxQuantity: 3, MinTotalPrice: d("0"), Rate: d("0.05")},
		{ID: 2, MinQuantity: 2, MaxQuantity: 6, MinTotalPrice: d("20"), Rate: d("0.2")},
		{ID: 3, MinQuantity: 4, MaxQuantity: 9, MinTotalPrice: d("10"), Rate: d("0.12")},
		{ID: 4, MinQuantity: 0, MaxQuantity: 10, MinTotalPrice: d("80"), Rate: d("0.25")},
	}
	prices := []decimal.Decimal{d("0.01"), d("10"), d("19.99"), d("20"), d("79.99"), d("80"), d("500")}

	for qty := 1; qty <= 11; qty++ {
		for _, price := range prices {
			got, ok := Select(tiers, qty, price)

			var (
				wantRate decimal.Decimal
				anyMatch bool
			)
			for _, tier := range tiers {
				if tier.Matches(qty, price) {
					if !anyMatch || tier.Rate.GreaterThan(wantRate) {
						wantRate = tier.Rate
					}
					anyMatch = true
				}
			}

			require.Equal(t, anyMatch, ok, "qty=%d price=%s", qty, price)
			if ok {
				assert.True(t, got.Matches(qty, price), "qty=%d price=%s", qty, price)
				assert.True(t, wantRate.Equal(got.Rate), "qty=%d price=%s", qty, price)
			}
		}
	}
}

func TestSelector_Select(t *testing.T) {
	t.Run("example tier", func(t *testing.T) {
		repo := &mockTierRepo{tiers: []Tier{
			{ID: 7, MinQuantity: 5, MaxQuantity: 20, MinTotalPrice: d("0"), Rate: d("0.1")},
		}}
		got, ok, err := NewSelector(repo).Select(context.Background(), 10, d("50.00"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(7), got.ID)
		assert.True(t, d("0.1").Equal(got.Rate))
	})

	t.Run("zero aggregate skips lookup", func(t *testing.T) {
		repo := &mockTierRepo{}
		_, ok, err := NewSelector(repo).Select(context.Background(), 0, d("10"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, repo.calls)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := &mockTierRepo{err: errors.New("db down")}
		_, _, err := NewSelector(repo).Select(context.Background(), 3, d("10"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list discount tiers")
	})
}

func TestSelector_Create(t *testing.T) {
	tests := []struct {
		name      string
		tier      Tier
		wantField string
	}{
		{name: "valid", tier: Tier{MinQuantity: 1, MaxQuantity: 5, MinTotalPrice: d("0"), Rate: d("0.5")}},
		{name: "rate above one", tier: Tier{MinQuantity: 1, MaxQuantity: 5, Rate: d("1.01")}, wantField: "discount_rate"},
		{name: "rate with four decimals", tier: Tier{MinQuantity: 1, MaxQuantity: 5, Rate: d("0.1235")}},
		{name: "rate with five decimals", tier: Tier{MinQuantity: 1, MaxQuantity: 5, Rate: d("0.12345")}, wantField: "discount_rate"},
		{name: "rate rounding up to one", tier: Tier{MinQuantity: 1, MaxQuantity: 5, Rate: d("0.99995")}, wantField: "discount_rate"},
		{name: "min price with three decimals", tier: Tier{MinQuantity: 1, MaxQuantity: 5, MinTotalPrice: d("10.005"), Rate: d("0.1")}, wantField: "min_total_price"},
		{name: "negative rate", tier: Tier{MinQuantity: 1, MaxQuantity: 5, Rate: d("-0.1")}, wantField: "discount_rate"},
		{name: "inverted range", tier: Tier{MinQuantity: 6, MaxQuantity: 5, Rate: d("0.1")}, wantField: "max_quantity"},
		{name: "negative min quantity", tier: Tier{MinQuantity: -1, MaxQuantity: 5, Rate: d("0.1")}, wantField: "min_quantity"},
		{name: "negative min price", tier: Tier{MinQuantity: 1, MaxQuantity: 5, MinTotalPrice: d("-1"), Rate: d("0.1")}, wantField: "min_total_price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockTierRepo{}
			got, err := NewSelector(repo).Create(context.Background(), tt.tier)
			if tt.wantField != "" {
				var tierErr *InvalidTierError
				require.ErrorAs(t, err, &tierErr)
				assert.Equal(t, tt.wantField, tierErr.Field)
				assert.Nil(t, repo.created)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.ID)
		})
	}
}
