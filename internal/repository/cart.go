package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	cartColumns = `id, customer_id, created_at, last_updated`
	itemColumns = `id, cart_id, product_id, quantity, added_at`

	getCartByCustomerSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE customer_id = $1
		ORDER BY last_updated DESC NULLS LAST, id DESC
		LIMIT 1`

	// Serializes checkouts of the same cart until the locking transaction ends.
	lockCartByCustomerSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE customer_id = $1
		ORDER BY id
		LIMIT 1
		FOR UPDATE`

	insertCartSQL = `INSERT INTO carts (customer_id) VALUES ($1)
		ON CONFLICT (customer_id) DO NOTHING`

	listCartLinesSQL = `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.added_at,
			p.name, p.retail_price, p.wholesale_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	upsertCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING ` + itemColumns

	updateCartItemSQL = `UPDATE cart_items SET quantity = $2 WHERE id = $1 RETURNING ` + itemColumns

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1 RETURNING cart_id`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	touchCartSQL = `UPDATE carts SET last_updated = NOW() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db DBTX
}

// NewCartRepository returns a CartRepository that uses the given pool or transaction.
func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// GetByCustomer returns the customer's cart or cart.ErrNotFound.
func (r *CartRepository) GetByCustomer(ctx context.Context, customerID int64) (*cart.Cart, error) {
	return r.getByCustomer(ctx, getCartByCustomerSQL, customerID)
}

// LockByCustomer is GetByCustomer taking a row lock on the cart. It only
// makes sense inside a transaction.
func (r *CartRepository) LockByCustomer(ctx context.Context, customerID int64) (*cart.Cart, error) {
	return r.getByCustomer(ctx, lockCartByCustomerSQL, customerID)
}

func (r *CartRepository) getByCustomer(ctx context.Context, query string, customerID int64) (*cart.Cart, error) {
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting cart of customer %d: %w", customerID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart of customer %d: %w", customerID, err)
	}
	return &c, nil
}

// GetOrCreate inserts an empty cart unless one exists and returns the
// stored cart. A concurrent insert for the same customer is absorbed by the
// unique constraint on carts.customer_id.
func (r *CartRepository) GetOrCreate(ctx context.Context, customerID int64) (*cart.Cart, error) {
	if _, err := r.db.Exec(ctx, insertCartSQL, customerID); err != nil {
		return nil, fmt.Errorf("creating cart for customer %d: %w", customerID, err)
	}
	return r.GetByCustomer(ctx, customerID)
}

// ListLines returns the cart's items joined with current product data.
func (r *CartRepository) ListLines(ctx context.Context, cartID int64) ([]cart.Line, error) {
	rows, err := r.db.Query(ctx, listCartLinesSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %d: %w", cartID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(
			&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.AddedAt,
			&l.ProductName, &l.RetailPrice, &l.WholesalePrice,
		)
		return l, err
	})
}

// AddItem inserts the product into the cart or increments its quantity in
// a single statement.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID int64, quantity int) (*cart.Item, error) {
	rows, err := r.db.Query(ctx, upsertCartItemSQL, cartID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	if err := r.touch(ctx, cartID); err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateItem sets the item's quantity or returns cart.ErrItemNotFound.
func (r *CartRepository) UpdateItem(ctx context.Context, itemID int64, quantity int) (*cart.Item, error) {
	rows, err := r.db.Query(ctx, updateCartItemSQL, itemID, quantity)
	if err != nil {
		return nil, fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if err := r.touch(ctx, it.CartID); err != nil {
		return nil, err
	}
	return &it, nil
}

// RemoveItem deletes the item or returns cart.ErrItemNotFound.
func (r *CartRepository) RemoveItem(ctx context.Context, itemID int64) error {
	var cartID int64
	err := r.db.QueryRow(ctx, deleteCartItemSQL, itemID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrItemNotFound
		}
		return fmt.Errorf("removing cart item %d: %w", itemID, err)
	}
	return r.touch(ctx, cartID)
}

// Clear deletes every item of the cart. The cart row is kept.
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	if _, err := r.db.Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %d: %w", cartID, err)
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepository) touch(ctx context.Context, cartID int64) error {
	if _, err := r.db.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touching cart %d: %w", cartID, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.CustomerID, &c.CreatedAt, &c.LastUpdated)
	return c, err
}

func scanItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.AddedAt)
	return it, err
}
