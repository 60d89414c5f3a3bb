package main

import (
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "products": [{"id": 1, "name": "Pen", "wholesale_price": "0.35", "retail_price": "0.60"}],
  "discounts": [{"id": 1, "min_quantity": 10, "max_quantity": 49, "discount_rate": "0.05", "min_total_price": "0"}]
}`

func TestReadSeedFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(plain, []byte(sample), 0o600))

	compressed := filepath.Join(dir, "catalog.json.gz")
	f, err := os.Create(compressed)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	for _, path := range []string{plain, compressed} {
		s, err := readSeedFile(path)
		require.NoError(t, err, path)
		require.Len(t, s.Products, 1)
		assert.True(t, decimal.RequireFromString("0.60").Equal(s.Products[0].RetailPrice))
		require.Len(t, s.Discounts, 1)
		assert.Equal(t, 49, s.Discounts[0].MaxQuantity)
		assert.Empty(t, s.Employees)
	}
}

func TestReadSeedFileUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"customers": []}`), 0o600))
	_, err := readSeedFile(path)
	require.Error(t, err)
}

func TestBundledCatalog(t *testing.T) {
	s, err := readSeedFile(filepath.Join("..", "..", "db", "seed", "catalog.json"))
	require.NoError(t, err)
	require.NoError(t, validate(s))
	assert.NotEmpty(t, s.Products)
	assert.Equal(t, int64(1), s.Employees[0].ID)
}

func TestValidate(t *testing.T) {
	ok := seedFile{
		Products:  []productJSON{{ID: 1, Name: "Pen", RetailPrice: decimal.NewFromInt(1)}},
		Employees: []employeeJSON{{ID: 2, Name: "Clerk"}},
	}
	require.NoError(t, validate(ok))

	tests := []struct {
		name string
		seed seedFile
	}{
		{"ProductWithoutName", seedFile{Products: []productJSON{{ID: 1}}}},
		{"NegativePrice", seedFile{Products: []productJSON{{ID: 1, Name: "Pen", RetailPrice: decimal.NewFromInt(-1)}}}},
		{"InvertedTier", seedFile{Discounts: []discountJSON{{ID: 1, MinQuantity: 10, MaxQuantity: 5}}}},
		{"RateAboveOne", seedFile{Discounts: []discountJSON{{ID: 1, MaxQuantity: 5, DiscountRate: decimal.NewFromInt(2)}}}},
		{"EmployeeWithoutID", seedFile{Employees: []employeeJSON{{Name: "Clerk"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validate(tt.seed))
		})
	}
}

func TestMerge(t *testing.T) {
	merged := merge([]seedFile{
		{Products: []productJSON{{ID: 1}}},
		{Products: []productJSON{{ID: 2}}, Employees: []employeeJSON{{ID: 3}}},
	})
	assert.Len(t, merged.Products, 2)
	assert.Len(t, merged.Employees, 1)
	assert.Empty(t, merged.Discounts)
}
