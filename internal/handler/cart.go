package handler

import (
	"net/http"
	"time"

	"github.com/xenking/storefront/internal/domain/cart"
)

type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartLineResponse struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	AddedDate   time.Time `json:"added_date"`
}

type cartItemResponse struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedDate time.Time `json:"added_date"`
}

type cartResponse struct {
	CartID          int64              `json:"cart_id"`
	CustomerID      int64              `json:"customer_id"`
	Items           []cartLineResponse `json:"items"`
	TotalItems      int                `json:"total_items"`
	TotalPrice      float64            `json:"total_price"`
	DiscountedPrice float64            `json:"discounted_price"`
	DiscountRate    float64            `json:"discount_rate"`
	DiscountID      *int64             `json:"discount_id"`
}

func toCartLineResponse(l *cart.Line) cartLineResponse {
	return cartLineResponse{
		ID:          l.ID,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		Price:       money(l.RetailPrice),
		AddedDate:   l.AddedAt,
	}
}

// GetCart handles GET /customers/{id}/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	v, err := h.carts.View(r.Context(), customerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := cartResponse{
		CartID:          v.CartID,
		CustomerID:      v.CustomerID,
		Items:           make([]cartLineResponse, len(v.Items)),
		TotalItems:      v.TotalItems,
		TotalPrice:      money(v.TotalPrice),
		DiscountedPrice: money(v.DiscountedPrice),
		DiscountRate:    money(v.DiscountRate),
		DiscountID:      v.DiscountID,
	}
	for i := range v.Items {
		resp.Items[i] = toCartLineResponse(&v.Items[i])
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddCartItem handles POST /customers/{id}/cart/items.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req addCartItemRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		h.fail(w, r, invalid("product_id is required"))
		return
	}
	if req.Quantity <= 0 {
		h.fail(w, r, invalid("quantity must be greater than 0"))
		return
	}

	line, err := h.carts.AddItem(r.Context(), customerID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartLineResponse(line))
}

// ClearCart handles DELETE /customers/{id}/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.carts.Clear(r.Context(), customerID); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// UpdateCartItem handles PUT /cart/items/{id}.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateCartItemRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Quantity <= 0 {
		h.fail(w, r, invalid("quantity must be greater than 0"))
		return
	}

	it, err := h.carts.UpdateItem(r.Context(), itemID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cartItemResponse{
		ID:        it.ID,
		CartID:    it.CartID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		AddedDate: it.AddedAt,
	})
}

// RemoveCartItem handles DELETE /cart/items/{id}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.carts.RemoveItem(r.Context(), itemID); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart"})
}
