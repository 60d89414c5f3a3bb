package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
)

// Customers is the customer lookup the cart needs.
type Customers interface {
	GetByID(ctx context.Context, id int64) (*customer.Customer, error)
}

// Products is the product lookup the cart needs.
type Products interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
}

// DiscountSelector picks the discount tier for an aggregate.
type DiscountSelector interface {
	Select(ctx context.Context, totalQuantity int, totalPrice decimal.Decimal) (discount.Tier, bool, error)
}

// Service encapsulates cart manipulation and aggregation.
type Service struct {
	carts     Repository
	customers Customers
	products  Products
	discounts DiscountSelector
}

// NewService creates a cart Service.
func NewService(carts Repository, customers Customers, products Products, discounts DiscountSelector) *Service {
	return &Service{
		carts:     carts,
		customers: customers,
		products:  products,
		discounts: discounts,
	}
}

// View loads the customer's cart and prices it at current retail prices
// with the best matching discount tier applied.
func (s *Service) View(ctx context.Context, customerID int64) (*View, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	c, err := s.carts.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	lines, err := s.carts.ListLines(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}

	totalItems, totalPrice := Totals(lines, false)

	tier, ok, err := s.discounts.Select(ctx, totalItems, totalPrice)
	if err != nil {
		return nil, errors.Wrap(err, "select discount")
	}

	v := &View{
		CartID:       c.ID,
		CustomerID:   c.CustomerID,
		Items:        lines,
		TotalItems:   totalItems,
		TotalPrice:   totalPrice.Round(2),
		DiscountRate: decimal.Zero,
	}
	if ok {
		v.DiscountRate = tier.Rate
		v.DiscountID = &tier.ID
	}
	v.DiscountedPrice = totalPrice.Mul(decimal.NewFromInt(1).Sub(v.DiscountRate)).Round(2)

	return v, nil
}

// GetOrCreate returns the customer's cart, creating an empty one on first use.
func (s *Service) GetOrCreate(ctx context.Context, customerID int64) (*Cart, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.carts.GetOrCreate(ctx, customerID)
}

// AddItem puts quantity units of the product into the customer's cart.
// Adding a product that is already present increases its quantity.
func (s *Service) AddItem(ctx context.Context, customerID, productID int64, quantity int) (*Line, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}

	item, err := s.carts.AddItem(ctx, c.ID, p.ID, quantity)
	if err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}

	return &Line{
		Item:           *item,
		ProductName:    p.Name,
		RetailPrice:    p.RetailPrice,
		WholesalePrice: p.WholesalePrice,
	}, nil
}

// UpdateItem sets the quantity of an existing cart item.
func (s *Service) UpdateItem(ctx context.Context, itemID int64, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}
	return s.carts.UpdateItem(ctx, itemID, quantity)
}

// RemoveItem deletes a single cart item.
func (s *Service) RemoveItem(ctx context.Context, itemID int64) error {
	return s.carts.RemoveItem(ctx, itemID)
}

// Clear empties the customer's cart. The cart row itself is kept.
func (s *Service) Clear(ctx context.Context, customerID int64) error {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return err
	}
	c, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return errors.Wrap(err, "get or create cart")
	}
	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
