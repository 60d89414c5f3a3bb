package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
)

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("order not found")

// Rejection reasons reported by PlaceOrder.
const (
	ReasonCustomerNotFound = "Customer not found"
	ReasonEmployeeNotFound = "Employee not found"
	ReasonCartNotFound     = "Cart not found"
	ReasonCartEmpty        = "Cart is empty"
)

// Error is a failed order placement. Nothing was persisted and the cart was
// left as it was.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func reject(reason string) error {
	return &Error{Reason: reason}
}

// Transaction is a committed purchase.
type Transaction struct {
	ID          int64
	CustomerID  int64
	EmployeeID  int64
	IsWholesale bool
	CreatedAt   time.Time
}

// Detail is one product line of a Transaction. UnitPrice is nil for rows
// written before unit prices were recorded.
type Detail struct {
	ID            int64
	TransactionID int64
	ProductID     int64
	Quantity      int
	DiscountRate  decimal.Decimal
	UnitPrice     *decimal.Decimal
}

// RecordLine is a Detail joined with the product's current name and prices.
type RecordLine struct {
	Detail
	ProductName    string
	RetailPrice    decimal.Decimal
	WholesalePrice decimal.Decimal
}

// Record is a persisted Transaction with its lines.
type Record struct {
	Transaction
	Lines []RecordLine
}

// ReceiptLine is the priced presentation of a single detail row.
type ReceiptLine struct {
	DetailID     int64
	ProductID    int64
	ProductName  string
	Quantity     int
	UnitPrice    decimal.Decimal
	DiscountRate decimal.Decimal
	Total        decimal.Decimal
}

// Receipt is the priced presentation of a Transaction.
type Receipt struct {
	ID             int64
	CustomerID     int64
	EmployeeID     int64
	IsWholesale    bool
	CreatedAt      time.Time
	Total          decimal.Decimal
	DiscountAmount decimal.Decimal
	Lines          []ReceiptLine
}

// HistoryPricing selects the unit price used when re-reading past orders.
type HistoryPricing string

const (
	// HistoryLive prices past orders at the products' current prices.
	HistoryLive HistoryPricing = "live"
	// HistoryFrozen prices past orders at the unit price recorded at
	// placement, falling back to the current price for rows without one.
	HistoryFrozen HistoryPricing = "frozen"
)

// ParseHistoryPricing validates a configured pricing mode. Empty means live.
func ParseHistoryPricing(s string) (HistoryPricing, error) {
	switch p := HistoryPricing(s); p {
	case "":
		return HistoryLive, nil
	case HistoryLive, HistoryFrozen:
		return p, nil
	default:
		return "", fmt.Errorf("unknown history pricing %q", s)
	}
}

// Tx is the set of operations available inside a placement unit of work.
type Tx interface {
	CustomerExists(ctx context.Context, id int64) (bool, error)
	EmployeeExists(ctx context.Context, id int64) (bool, error)
	// CartByCustomer returns cart.ErrNotFound when the customer has no cart.
	CartByCustomer(ctx context.Context, customerID int64) (*cart.Cart, error)
	CartLines(ctx context.Context, cartID int64) ([]cart.Line, error)
	DiscountTiers(ctx context.Context) ([]discount.Tier, error)
	CreateTransaction(ctx context.Context, t *Transaction) error
	CreateDetail(ctx context.Context, d *Detail) error
	ClearCart(ctx context.Context, cartID int64) error
}

// Store persists and reads orders.
type Store interface {
	// InTx runs fn in a single read-committed transaction. It commits when
	// fn returns nil and rolls back otherwise, including on panic.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListByCustomer returns the customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID int64) ([]Record, error)
	// GetByID returns ErrNotFound when the transaction does not exist.
	GetByID(ctx context.Context, id int64) (*Record, error)
}
