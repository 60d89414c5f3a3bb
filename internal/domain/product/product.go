package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrQueryTooShort is returned for text searches shorter than MinQueryLength.
	ErrQueryTooShort = errors.New("search query must be at least 2 characters long")
)

// MinQueryLength is the shortest accepted text search query.
const MinQueryLength = 2

// Product represents a catalog item sold at a wholesale or a retail price.
type Product struct {
	ID             int64
	Name           string
	WholesalePrice decimal.Decimal
	RetailPrice    decimal.Decimal
	Description    string
	Image          string
}

// Price returns the unit price for the requested pricing mode.
func (p Product) Price(wholesale bool) decimal.Decimal {
	if wholesale {
		return p.WholesalePrice
	}
	return p.RetailPrice
}

// Sort names a catalog ordering.
type Sort string

// Supported orderings. Anything else leaves the catalog in ID order.
const (
	SortRetailPriceAsc     Sort = "retail_price_asc"
	SortRetailPriceDesc    Sort = "retail_price_desc"
	SortWholesalePriceAsc  Sort = "wholesale_price_asc"
	SortWholesalePriceDesc Sort = "wholesale_price_desc"
	SortNameAsc            Sort = "name_asc"
	SortNameDesc           Sort = "name_desc"
	SortDescriptionAsc     Sort = "description_asc"
	SortDescriptionDesc    Sort = "description_desc"
	SortIDAsc              Sort = "id_asc"
	SortIDDesc             Sort = "id_desc"
)

// Filter narrows a catalog listing. Price bounds apply to the retail price
// and are exclusive; Name is a case-insensitive substring.
type Filter struct {
	PriceLT *decimal.Decimal
	PriceGT *decimal.Decimal
	Name    string
	Sort    Sort
}

// SearchQuery is a parsed free-form search. Number is set when the text
// parses as a number and enables exact matching on prices and on the ID,
// which is compared with the number's integral part.
type SearchQuery struct {
	Text   string
	Number *decimal.Decimal
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Search(ctx context.Context, q SearchQuery) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
}
