package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	transactionColumns = `id, customer_id, employee_id, is_wholesale, created_at`

	employeeExistsSQL = `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`

	createTransactionSQL = `INSERT INTO transactions (customer_id, employee_id, is_wholesale, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`

	createDetailSQL = `INSERT INTO transaction_details (transaction_id, product_id, quantity, discount_rate, unit_price)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	listTransactionsByCustomerSQL = `SELECT ` + transactionColumns + ` FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC`

	getTransactionSQL = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	listDetailsSQL = `SELECT d.id, d.transaction_id, d.product_id, d.quantity, d.discount_rate, d.unit_price,
			p.name, p.retail_price, p.wholesale_price
		FROM transaction_details d
		JOIN products p ON p.id = d.product_id
		WHERE d.transaction_id = ANY($1)
		ORDER BY d.id`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn inside a read-committed transaction. The transaction is
// rolled back when fn returns an error or panics.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, newOrderTx(tx))
	})
}

// ListByCustomer returns the customer's transactions, newest first.
func (s *OrderStore) ListByCustomer(ctx context.Context, customerID int64) ([]order.Record, error) {
	rows, err := s.pool.Query(ctx, listTransactionsByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions of customer %d: %w", customerID, err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("listing transactions of customer %d: %w", customerID, err)
	}
	return s.withLines(ctx, txs)
}

// GetByID returns a single transaction or order.ErrNotFound.
func (s *OrderStore) GetByID(ctx context.Context, id int64) (*order.Record, error) {
	rows, err := s.pool.Query(ctx, getTransactionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction %d: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting transaction %d: %w", id, err)
	}

	records, err := s.withLines(ctx, []order.Transaction{t})
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// withLines loads the detail rows of txs in one query.
func (s *OrderStore) withLines(ctx context.Context, txs []order.Transaction) ([]order.Record, error) {
	records := make([]order.Record, len(txs))
	if len(txs) == 0 {
		return records, nil
	}

	ids := make([]int64, len(txs))
	index := make(map[int64]int, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
		index[t.ID] = i
		records[i].Transaction = t
	}

	rows, err := s.pool.Query(ctx, listDetailsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing transaction details: %w", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.RecordLine, error) {
		var l order.RecordLine
		err := row.Scan(
			&l.ID, &l.TransactionID, &l.ProductID, &l.Quantity, &l.DiscountRate, &l.UnitPrice,
			&l.ProductName, &l.RetailPrice, &l.WholesalePrice,
		)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing transaction details: %w", err)
	}

	for _, l := range lines {
		i := index[l.TransactionID]
		records[i].Lines = append(records[i].Lines, l)
	}
	return records, nil
}

// orderTx implements order.Tx on top of a single pgx.Tx.
type orderTx struct {
	db        DBTX
	customers *CustomerRepository
	carts     *CartRepository
	discounts *DiscountRepository
}

var _ order.Tx = (*orderTx)(nil)

func newOrderTx(tx pgx.Tx) *orderTx {
	return &orderTx{
		db:        tx,
		customers: NewCustomerRepository(tx),
		carts:     NewCartRepository(tx),
		discounts: NewDiscountRepository(tx),
	}
}

func (t *orderTx) CustomerExists(ctx context.Context, id int64) (bool, error) {
	return t.customers.Exists(ctx, id)
}

func (t *orderTx) EmployeeExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := t.db.QueryRow(ctx, employeeExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking employee %d: %w", id, err)
	}
	return ok, nil
}

// CartByCustomer locks the cart so a concurrent checkout of the same cart
// waits and then sees it emptied.
func (t *orderTx) CartByCustomer(ctx context.Context, customerID int64) (*cart.Cart, error) {
	return t.carts.LockByCustomer(ctx, customerID)
}

func (t *orderTx) CartLines(ctx context.Context, cartID int64) ([]cart.Line, error) {
	return t.carts.ListLines(ctx, cartID)
}

func (t *orderTx) DiscountTiers(ctx context.Context) ([]discount.Tier, error) {
	return t.discounts.List(ctx)
}

func (t *orderTx) CreateTransaction(ctx context.Context, tr *order.Transaction) error {
	err := t.db.QueryRow(ctx, createTransactionSQL,
		tr.CustomerID, tr.EmployeeID, tr.IsWholesale, tr.CreatedAt,
	).Scan(&tr.ID)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}
	return nil
}

func (t *orderTx) CreateDetail(ctx context.Context, d *order.Detail) error {
	err := t.db.QueryRow(ctx, createDetailSQL,
		d.TransactionID, d.ProductID, d.Quantity, d.DiscountRate, d.UnitPrice,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("creating transaction detail: %w", err)
	}
	return nil
}

func (t *orderTx) ClearCart(ctx context.Context, cartID int64) error {
	return t.carts.Clear(ctx, cartID)
}

func scanTransaction(row pgx.CollectableRow) (order.Transaction, error) {
	var t order.Transaction
	err := row.Scan(&t.ID, &t.CustomerID, &t.EmployeeID, &t.IsWholesale, &t.CreatedAt)
	return t, err
}
