// Package handler exposes the storefront over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const maxBodyBytes = 1 << 20

// CustomerService is satisfied by *customer.Service.
type CustomerService interface {
	Register(ctx context.Context, c customer.Customer) (*customer.Customer, error)
	Login(ctx context.Context, email, passwordHash string) (*customer.Customer, error)
	Get(ctx context.Context, id int64) (*customer.Customer, error)
	Update(ctx context.Context, id int64, p customer.Patch) (*customer.Customer, error)
}

// CartService is satisfied by *cart.Service.
type CartService interface {
	View(ctx context.Context, customerID int64) (*cart.View, error)
	AddItem(ctx context.Context, customerID, productID int64, quantity int) (*cart.Line, error)
	UpdateItem(ctx context.Context, itemID int64, quantity int) (*cart.Item, error)
	RemoveItem(ctx context.Context, itemID int64) error
	Clear(ctx context.Context, customerID int64) error
}

// OrderService is satisfied by *order.Service.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Receipt, error)
	ListOrders(ctx context.Context, customerID int64) ([]order.Receipt, error)
	GetOrder(ctx context.Context, id int64) (*order.Receipt, error)
}

// ProductService is satisfied by *product.Service.
type ProductService interface {
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
	Search(ctx context.Context, query string) ([]product.Product, error)
	Get(ctx context.Context, id int64) (*product.Product, error)
}

// DiscountService is satisfied by *discount.Selector.
type DiscountService interface {
	List(ctx context.Context) ([]discount.Tier, error)
	Create(ctx context.Context, t discount.Tier) (*discount.Tier, error)
}

// Handler serves the storefront API.
type Handler struct {
	customers CustomerService
	carts     CartService
	orders    OrderService
	products  ProductService
	discounts DiscountService
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	customers CustomerService,
	carts CartService,
	orders OrderService,
	products ProductService,
	discounts DiscountService,
) *Handler {
	return &Handler{
		customers: customers,
		carts:     carts,
		orders:    orders,
		products:  products,
		discounts: discounts,
	}
}

// Routes returns the API router. It is meant to be mounted under /api.
// auth wraps the credential endpoints only.
func (h *Handler) Routes(auth ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(auth...).Post("/register", h.Register)
	r.With(auth...).Post("/login", h.Login)

	r.Route("/customers/{id}", func(r chi.Router) {
		r.Get("/", h.GetCustomer)
		r.Put("/", h.UpdateCustomer)

		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddCartItem)

		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListOrders)
	})

	r.Put("/cart/items/{id}", h.UpdateCartItem)
	r.Delete("/cart/items/{id}", h.RemoveCartItem)

	r.Get("/orders/{id}", h.GetOrder)

	r.Get("/products", h.ListProducts)
	r.Get("/products/search", h.SearchProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Get("/discounts", h.ListDiscounts)
	r.Post("/discounts", h.CreateDiscount)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// validationError is a malformed request rejected before reaching a service.
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func invalid(msg string) error {
	return &validationError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// fail maps err to a status code and writes the error body. Unexpected
// errors are logged and hidden from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	lg := zctx.From(r.Context())

	switch {
	case status >= http.StatusInternalServerError:
		lg.Error("Request failed", zap.Error(err))
		msg = http.StatusText(status)
	case errors.Unwrap(err) != nil:
		lg.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	writeError(w, status, msg)
}

func classify(err error) (int, string) {
	var (
		ve *validationError
		qe *cart.InvalidQuantityError
		te *discount.InvalidTierError
		oe *order.Error
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.As(err, &qe):
		return http.StatusBadRequest, qe.Error()
	case errors.As(err, &te):
		return http.StatusBadRequest, te.Error()
	case errors.As(err, &oe):
		return http.StatusBadRequest, oe.Reason
	case errors.Is(err, product.ErrQueryTooShort):
		return http.StatusBadRequest, product.ErrQueryTooShort.Error()
	case errors.Is(err, customer.ErrEmailTaken):
		return http.StatusConflict, customer.ErrEmailTaken.Error()
	case errors.Is(err, customer.ErrInvalidCredentials):
		return http.StatusUnauthorized, customer.ErrInvalidCredentials.Error()
	}

	for _, nf := range []error{
		customer.ErrNotFound,
		product.ErrNotFound,
		cart.ErrNotFound,
		cart.ErrItemNotFound,
		order.ErrNotFound,
	} {
		if errors.Is(err, nf) {
			return http.StatusNotFound, nf.Error()
		}
	}

	return http.StatusInternalServerError, err.Error()
}

// decodeBody decodes a JSON request body into v. An empty body is accepted
// when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return invalid("invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("invalid " + name)
	}
	return id, nil
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalid(name + " must be a number")
	}
	return &v, nil
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
