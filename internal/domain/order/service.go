package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
)

const meterName = "github.com/xenking/storefront/internal/domain/order"

// DefaultEmployeeID is used when a request does not name an employee.
const DefaultEmployeeID int64 = 1

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerID  int64
	EmployeeID  int64
	IsWholesale bool
}

// Option configures a Service.
type Option func(*Service)

// WithHistoryPricing sets how ListOrders and GetOrder price past orders.
func WithHistoryPricing(p HistoryPricing) Option {
	return func(s *Service) {
		s.pricing = p
	}
}

// WithMeterProvider sets the provider for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service places orders from carts and reads order history.
type Service struct {
	store         Store
	pricing       HistoryPricing
	meterProvider metric.MeterProvider
	now           func() time.Time

	placed metric.Int64Counter
	failed metric.Int64Counter
	totals metric.Float64Histogram
}

// NewService creates an order Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:         store,
		pricing:       HistoryLive,
		meterProvider: noop.NewMeterProvider(),
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meterProvider.Meter(meterName)

	var err error
	if s.placed, err = meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed")
	}
	if s.failed, err = meter.Int64Counter("orders.failed",
		metric.WithDescription("Order placements rolled back"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.failed")
	}
	if s.totals, err = meter.Float64Histogram("orders.total",
		metric.WithDescription("Receipt total of committed orders"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.total")
	}

	return s, nil
}

// PlaceOrder converts the customer's cart into a transaction. Every step
// runs in one unit of work: on success the order rows are written and the
// cart is emptied, on any failure nothing changes. Failures are returned
// as *Error.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Receipt, error) {
	if req.EmployeeID == 0 {
		req.EmployeeID = DefaultEmployeeID
	}
	attrs := metric.WithAttributes(attribute.Bool("wholesale", req.IsWholesale))

	var receipt *Receipt
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := s.place(ctx, tx, req)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		s.failed.Add(ctx, 1, attrs)

		var oe *Error
		if errors.As(err, &oe) {
			return nil, oe
		}
		return nil, &Error{Reason: err.Error(), Err: err}
	}

	s.placed.Add(ctx, 1, attrs)
	s.totals.Record(ctx, receipt.Total.InexactFloat64(), attrs)

	return receipt, nil
}

func (s *Service) place(ctx context.Context, tx Tx, req PlaceOrderRequest) (*Receipt, error) {
	ok, err := tx.CustomerExists(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "load customer")
	}
	if !ok {
		return nil, reject(ReasonCustomerNotFound)
	}

	ok, err = tx.EmployeeExists(ctx, req.EmployeeID)
	if err != nil {
		return nil, errors.Wrap(err, "load employee")
	}
	if !ok {
		return nil, reject(ReasonEmployeeNotFound)
	}

	c, err := tx.CartByCustomer(ctx, req.CustomerID)
	if errors.Is(err, cart.ErrNotFound) {
		return nil, reject(ReasonCartNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	lines, err := tx.CartLines(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart items")
	}
	if len(lines) == 0 {
		return nil, reject(ReasonCartEmpty)
	}

	totalQuantity, totalPrice := cart.Totals(lines, req.IsWholesale)

	tiers, err := tx.DiscountTiers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load discount tiers")
	}
	rate := decimal.Zero
	if tier, ok := discount.Select(tiers, totalQuantity, totalPrice); ok {
		rate = tier.Rate
	}

	t := &Transaction{
		CustomerID:  req.CustomerID,
		EmployeeID:  req.EmployeeID,
		IsWholesale: req.IsWholesale,
		CreatedAt:   s.now().UTC(),
	}
	if err := tx.CreateTransaction(ctx, t); err != nil {
		return nil, errors.Wrap(err, "create transaction")
	}

	keep := decimal.NewFromInt(1).Sub(rate)
	receipt := &Receipt{
		ID:          t.ID,
		CustomerID:  t.CustomerID,
		EmployeeID:  t.EmployeeID,
		IsWholesale: t.IsWholesale,
		CreatedAt:   t.CreatedAt,
		Lines:       make([]ReceiptLine, 0, len(lines)),
	}
	total := decimal.Zero
	for _, l := range lines {
		price := l.UnitPrice(req.IsWholesale)
		d := &Detail{
			TransactionID: t.ID,
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			DiscountRate:  rate,
			UnitPrice:     &price,
		}
		if err := tx.CreateDetail(ctx, d); err != nil {
			return nil, errors.Wrapf(err, "create detail for product %d", l.ProductID)
		}

		lineTotal := price.Mul(decimal.NewFromInt(int64(l.Quantity))).Mul(keep)
		total = total.Add(lineTotal)
		receipt.Lines = append(receipt.Lines, ReceiptLine{
			DetailID:     d.ID,
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			Quantity:     l.Quantity,
			UnitPrice:    price,
			DiscountRate: rate,
			Total:        lineTotal,
		})
	}

	if err := tx.ClearCart(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	receipt.Total = total.Round(2)
	receipt.DiscountAmount = totalPrice.Mul(rate).Round(2)

	return receipt, nil
}

// ListOrders returns the customer's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, customerID int64) ([]Receipt, error) {
	records, err := s.store.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of customer %d", customerID)
	}

	receipts := make([]Receipt, len(records))
	for i := range records {
		receipts[i] = s.receipt(&records[i])
	}
	return receipts, nil
}

// GetOrder returns a single order or ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Receipt, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := s.receipt(rec)
	return &r, nil
}

// receipt prices a persisted order. Line totals are
// unit price × quantity × (1 − stored rate).
func (s *Service) receipt(rec *Record) Receipt {
	r := Receipt{
		ID:          rec.ID,
		CustomerID:  rec.CustomerID,
		EmployeeID:  rec.EmployeeID,
		IsWholesale: rec.IsWholesale,
		CreatedAt:   rec.CreatedAt,
		Lines:       make([]ReceiptLine, 0, len(rec.Lines)),
	}

	total := decimal.Zero
	discountAmount := decimal.Zero
	for _, l := range rec.Lines {
		price := l.RetailPrice
		if rec.IsWholesale {
			price = l.WholesalePrice
		}
		if s.pricing == HistoryFrozen && l.UnitPrice != nil {
			price = *l.UnitPrice
		}

		gross := price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		lineTotal := gross.Mul(decimal.NewFromInt(1).Sub(l.DiscountRate))
		total = total.Add(lineTotal)
		discountAmount = discountAmount.Add(gross.Mul(l.DiscountRate))

		r.Lines = append(r.Lines, ReceiptLine{
			DetailID:     l.ID,
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			Quantity:     l.Quantity,
			UnitPrice:    price,
			DiscountRate: l.DiscountRate,
			Total:        lineTotal,
		})
	}
	r.Total = total.Round(2)
	r.DiscountAmount = discountAmount.Round(2)

	return r
}
