package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, wholesale_price, retail_price, description, image`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	searchProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE name ILIKE '%' || $1 || '%'
			OR description ILIKE '%' || $1 || '%'
			OR id = $3::bigint
			OR wholesale_price = $2::numeric
			OR retail_price = $2::numeric
		ORDER BY id`
)

// orderBy maps accepted sort keys to ORDER BY clauses. Unknown keys fall
// back to ID order.
var orderBy = map[product.Sort]string{
	product.SortRetailPriceAsc:     "retail_price ASC, id",
	product.SortRetailPriceDesc:    "retail_price DESC, id",
	product.SortWholesalePriceAsc:  "wholesale_price ASC, id",
	product.SortWholesalePriceDesc: "wholesale_price DESC, id",
	product.SortNameAsc:            "name ASC, id",
	product.SortNameDesc:           "name DESC, id",
	product.SortDescriptionAsc:     "description ASC, id",
	product.SortDescriptionDesc:    "description DESC, id",
	product.SortIDAsc:              "id ASC",
	product.SortIDDesc:             "id DESC",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db DBTX
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns the products matching f in the requested order.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	query, args := listProductsQuery(f)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Search returns products whose name or description contains the query
// text, or whose prices equal its numeric value. The ID is compared with the
// integral part of the number.
func (r *ProductRepository) Search(ctx context.Context, q product.SearchQuery) ([]product.Product, error) {
	var id *int64
	if q.Number != nil {
		n := q.Number.IntPart()
		id = &n
	}
	rows, err := r.db.Query(ctx, searchProductsSQL, likeEscaper.Replace(q.Text), q.Number, id)
	if err != nil {
		return nil, fmt.Errorf("searching products %q: %w", q.Text, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.db.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

func listProductsQuery(f product.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.PriceLT != nil {
		args = append(args, *f.PriceLT)
		where = append(where, fmt.Sprintf("retail_price < $%d", len(args)))
	}
	if f.PriceGT != nil {
		args = append(args, *f.PriceGT)
		where = append(where, fmt.Sprintf("retail_price > $%d", len(args)))
	}
	if f.Name != "" {
		args = append(args, likeEscaper.Replace(f.Name))
		where = append(where, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + productColumns + " FROM products")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	order, ok := orderBy[f.Sort]
	if !ok {
		order = "id"
	}
	sb.WriteString(" ORDER BY " + order)

	return sb.String(), args
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.WholesalePrice, &p.RetailPrice, &p.Description, &p.Image)
	return p, err
}
