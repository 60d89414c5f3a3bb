package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

type discountRequest struct {
	MinQuantity   *int             `json:"min_quantity"`
	MaxQuantity   *int             `json:"max_quantity"`
	DiscountRate  *decimal.Decimal `json:"discount_rate"`
	MinTotalPrice *decimal.Decimal `json:"min_total_price"`
}

type discountResponse struct {
	ID            int64   `json:"discount_id"`
	MinQuantity   int     `json:"min_quantity"`
	MaxQuantity   int     `json:"max_quantity"`
	DiscountRate  float64 `json:"discount_rate"`
	MinTotalPrice float64 `json:"min_total_price"`
}

func toDiscountResponse(t *discount.Tier) discountResponse {
	return discountResponse{
		ID:            t.ID,
		MinQuantity:   t.MinQuantity,
		MaxQuantity:   t.MaxQuantity,
		DiscountRate:  money(t.Rate),
		MinTotalPrice: money(t.MinTotalPrice),
	}
}

// ListDiscounts handles GET /discounts.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.discounts.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := make([]discountResponse, len(tiers))
	for i := range tiers {
		resp[i] = toDiscountResponse(&tiers[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateDiscount handles POST /discounts.
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.MinQuantity == nil || req.MaxQuantity == nil || req.DiscountRate == nil {
		h.fail(w, r, invalid("min_quantity, max_quantity and discount_rate are required"))
		return
	}

	t := discount.Tier{
		MinQuantity:   *req.MinQuantity,
		MaxQuantity:   *req.MaxQuantity,
		Rate:          *req.DiscountRate,
		MinTotalPrice: decimal.Zero,
	}
	if req.MinTotalPrice != nil {
		t.MinTotalPrice = *req.MinTotalPrice
	}

	created, err := h.discounts.Create(r.Context(), t)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDiscountResponse(created))
}
