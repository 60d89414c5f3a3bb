package handler

import (
	"net/http"
	"time"

	"github.com/xenking/storefront/internal/domain/order"
)

type placeOrderRequest struct {
	EmployeeID  *int64 `json:"employee_id"`
	IsWholesale bool   `json:"is_wholesale"`
}

type receiptLineResponse struct {
	ID              int64   `json:"id"`
	TransactionID   int64   `json:"transaction_id"`
	ProductID       int64   `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Quantity        int     `json:"quantity"`
	Discount        float64 `json:"discount"`
	CurrentPrice    float64 `json:"current_price"`
	CalculatedTotal float64 `json:"calculated_total"`
}

type receiptResponse struct {
	ID              int64                 `json:"id"`
	CustomerID      int64                 `json:"customer_id"`
	EmployeeID      int64                 `json:"employee_id"`
	IsWholesale     bool                  `json:"is_wholesale"`
	TransactionDate time.Time             `json:"transaction_date"`
	TotalAmount     float64               `json:"total_amount"`
	DiscountAmount  float64               `json:"discount_amount"`
	Details         []receiptLineResponse `json:"details"`
}

type receiptListResponse struct {
	Transactions []receiptResponse `json:"transactions"`
}

func toReceiptResponse(r *order.Receipt) receiptResponse {
	resp := receiptResponse{
		ID:              r.ID,
		CustomerID:      r.CustomerID,
		EmployeeID:      r.EmployeeID,
		IsWholesale:     r.IsWholesale,
		TransactionDate: r.CreatedAt,
		TotalAmount:     money(r.Total),
		DiscountAmount:  money(r.DiscountAmount),
		Details:         make([]receiptLineResponse, len(r.Lines)),
	}
	for i, l := range r.Lines {
		resp.Details[i] = receiptLineResponse{
			ID:              l.DetailID,
			TransactionID:   r.ID,
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			Discount:        money(l.DiscountRate),
			CurrentPrice:    money(l.UnitPrice),
			CalculatedTotal: money(l.Total),
		}
	}
	return resp
}

// PlaceOrder handles POST /customers/{id}/orders. The body is optional.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req placeOrderRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	in := order.PlaceOrderRequest{
		CustomerID:  customerID,
		EmployeeID:  order.DefaultEmployeeID,
		IsWholesale: req.IsWholesale,
	}
	if req.EmployeeID != nil {
		if *req.EmployeeID <= 0 {
			h.fail(w, r, invalid("employee_id must be positive"))
			return
		}
		in.EmployeeID = *req.EmployeeID
	}

	receipt, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

// ListOrders handles GET /customers/{id}/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	receipts, err := h.orders.ListOrders(r.Context(), customerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := receiptListResponse{Transactions: make([]receiptResponse, len(receipts))}
	for i := range receipts {
		resp.Transactions[i] = toReceiptResponse(&receipts[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	receipt, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}
