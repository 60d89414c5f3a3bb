package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	listDiscountsSQL = `SELECT id, min_quantity, max_quantity, min_total_price, discount_rate
		FROM discounts ORDER BY id`

	createDiscountSQL = `INSERT INTO discounts (min_quantity, max_quantity, min_total_price, discount_rate)
		VALUES ($1, $2, $3, $4) RETURNING id`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	db DBTX
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool or transaction.
func NewDiscountRepository(db DBTX) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// List returns every tier in ID order.
func (r *DiscountRepository) List(ctx context.Context) ([]discount.Tier, error) {
	rows, err := r.db.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (discount.Tier, error) {
		var t discount.Tier
		err := row.Scan(&t.ID, &t.MinQuantity, &t.MaxQuantity, &t.MinTotalPrice, &t.Rate)
		return t, err
	})
}

// Create inserts t and sets its ID.
func (r *DiscountRepository) Create(ctx context.Context, t *discount.Tier) error {
	err := r.db.QueryRow(ctx, createDiscountSQL,
		t.MinQuantity, t.MaxQuantity, t.MinTotalPrice, t.Rate,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("creating discount: %w", err)
	}
	return nil
}
