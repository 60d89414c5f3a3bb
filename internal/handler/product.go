package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/product"
)

type productResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	WholesalePrice float64 `json:"wholesale_price"`
	RetailPrice    float64 `json:"retail_price"`
	Description    string  `json:"description"`
	Image          string  `json:"image"`
}

type productListResponse struct {
	Products []productResponse `json:"products"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		WholesalePrice: money(p.WholesalePrice),
		RetailPrice:    money(p.RetailPrice),
		Description:    p.Description,
		Image:          p.Image,
	}
}

func writeProducts(w http.ResponseWriter, products []product.Product) {
	resp := productListResponse{Products: make([]productResponse, len(products))}
	for i := range products {
		resp.Products[i] = toProductResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProducts handles GET /products?price_lt=&price_gt=&name=&sort_by=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	lt, err := queryDecimal(r, "price_lt")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	gt, err := queryDecimal(r, "price_gt")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	products, err := h.products.List(r.Context(), product.Filter{
		PriceLT: lt,
		PriceGT: gt,
		Name:    q.Get("name"),
		Sort:    product.Sort(q.Get("sort_by")),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeProducts(w, products)
}

// SearchProducts handles GET /products/search?query=.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeProducts(w, products)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}
