package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a customer has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a cart item does not exist.
	ErrItemNotFound = errors.New("cart item not found")
)

// InvalidQuantityError indicates a non-positive item quantity.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0, got %d", e.Quantity)
}

// Cart is a customer's in-progress selection. A customer owns at most one.
type Cart struct {
	ID          int64
	CustomerID  int64
	CreatedAt   time.Time
	LastUpdated *time.Time
}

// Item is a (cart, product) pair. There is at most one per pair.
type Item struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

// Line is an Item joined with the product's current name and prices.
type Line struct {
	Item
	ProductName    string
	RetailPrice    decimal.Decimal
	WholesalePrice decimal.Decimal
}

// UnitPrice returns the live unit price for the pricing mode.
func (l Line) UnitPrice(wholesale bool) decimal.Decimal {
	if wholesale {
		return l.WholesalePrice
	}
	return l.RetailPrice
}

// Totals returns the summed quantity and the summed quantity × unit price
// of lines under the given pricing mode.
func Totals(lines []Line, wholesale bool) (int, decimal.Decimal) {
	qty := 0
	total := decimal.Zero
	for _, l := range lines {
		qty += l.Quantity
		total = total.Add(l.UnitPrice(wholesale).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return qty, total
}

// View is the priced presentation of a cart. Prices are retail and live.
type View struct {
	CartID          int64
	CustomerID      int64
	Items           []Line
	TotalItems      int
	TotalPrice      decimal.Decimal
	DiscountedPrice decimal.Decimal
	DiscountRate    decimal.Decimal
	DiscountID      *int64
}

// Repository defines persistence operations for carts and their items.
type Repository interface {
	// GetByCustomer returns the customer's most recently touched cart.
	GetByCustomer(ctx context.Context, customerID int64) (*Cart, error)
	// GetOrCreate returns the customer's cart, inserting an empty one when
	// none exists. Concurrent callers observe the same cart.
	GetOrCreate(ctx context.Context, customerID int64) (*Cart, error)
	ListLines(ctx context.Context, cartID int64) ([]Line, error)
	// AddItem inserts the product or atomically increments its quantity.
	AddItem(ctx context.Context, cartID, productID int64, quantity int) (*Item, error)
	UpdateItem(ctx context.Context, itemID int64, quantity int) (*Item, error)
	RemoveItem(ctx context.Context, itemID int64) error
	Clear(ctx context.Context, cartID int64) error
}
