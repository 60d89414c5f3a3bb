// Command seed-db loads catalog data (products, discount tiers and
// employees) from JSON files into the storefront database. Files ending in
// .gz are decompressed on the fly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/repository"
)

type productJSON struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	Description    string          `json:"description"`
	Image          string          `json:"image"`
}

type discountJSON struct {
	ID            int64           `json:"id"`
	MinQuantity   int             `json:"min_quantity"`
	MaxQuantity   int             `json:"max_quantity"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	MinTotalPrice decimal.Decimal `json:"min_total_price"`
}

type employeeJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// seedFile is the layout of every input file. Sections may be omitted.
type seedFile struct {
	Products  []productJSON  `json:"products"`
	Discounts []discountJSON `json:"discounts"`
	Employees []employeeJSON `json:"employees"`
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		files = []string{"db/seed/catalog.json"}
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	// Files are decoded concurrently; rows are written in one transaction.
	seeds := make([]seedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := readSeedFile(path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			seeds[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	merged := merge(seeds)
	if err := validate(merged); err != nil {
		return err
	}

	slog.Info("running migrations")
	if err := repository.RunMigrations(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return upsert(ctx, pool, merged)
}

func readSeedFile(path string) (seedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return seedFile{}, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return seedFile{}, errors.Wrap(err, "gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var s seedFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return seedFile{}, errors.Wrap(err, "decode")
	}
	slog.Info("read seed file",
		slog.String("path", path),
		slog.Int("products", len(s.Products)),
		slog.Int("discounts", len(s.Discounts)),
		slog.Int("employees", len(s.Employees)),
	)
	return s, nil
}

func merge(seeds []seedFile) seedFile {
	var out seedFile
	for _, s := range seeds {
		out.Products = append(out.Products, s.Products...)
		out.Discounts = append(out.Discounts, s.Discounts...)
		out.Employees = append(out.Employees, s.Employees...)
	}
	return out
}

func validate(s seedFile) error {
	for _, p := range s.Products {
		if p.ID <= 0 || p.Name == "" {
			return errors.Errorf("product %d: id and name are required", p.ID)
		}
		if p.RetailPrice.IsNegative() || p.WholesalePrice.IsNegative() {
			return errors.Errorf("product %d: negative price", p.ID)
		}
	}
	for _, d := range s.Discounts {
		tier := discount.Tier{
			ID:            d.ID,
			MinQuantity:   d.MinQuantity,
			MaxQuantity:   d.MaxQuantity,
			Rate:          d.DiscountRate,
			MinTotalPrice: d.MinTotalPrice,
		}
		if err := tier.Validate(); err != nil {
			return errors.Wrapf(err, "discount %d", d.ID)
		}
	}
	for _, e := range s.Employees {
		if e.ID <= 0 || e.Name == "" {
			return errors.Errorf("employee %d: id and name are required", e.ID)
		}
	}
	return nil
}

const (
	upsertProduct = `INSERT INTO products (id, name, wholesale_price, retail_price, description, image)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    wholesale_price = EXCLUDED.wholesale_price,
    retail_price = EXCLUDED.retail_price,
    description = EXCLUDED.description,
    image = EXCLUDED.image`

	upsertDiscount = `INSERT INTO discounts (id, min_quantity, max_quantity, discount_rate, min_total_price)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    min_quantity = EXCLUDED.min_quantity,
    max_quantity = EXCLUDED.max_quantity,
    discount_rate = EXCLUDED.discount_rate,
    min_total_price = EXCLUDED.min_total_price`

	upsertEmployee = `INSERT INTO employees (id, name, position, phone, email)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    position = EXCLUDED.position,
    phone = EXCLUDED.phone,
    email = EXCLUDED.email`
)

// Explicit ids bypass the sequences, so they are moved past the seeded rows.
var resetSequences = []string{
	`SELECT setval(pg_get_serial_sequence('products', 'id'), COALESCE((SELECT MAX(id) FROM products), 1))`,
	`SELECT setval(pg_get_serial_sequence('discounts', 'id'), COALESCE((SELECT MAX(id) FROM discounts), 1))`,
	`SELECT setval(pg_get_serial_sequence('employees', 'id'), COALESCE((SELECT MAX(id) FROM employees), 1))`,
}

func upsert(ctx context.Context, pool *pgxpool.Pool, s seedFile) error {
	batch := &pgx.Batch{}
	for _, p := range s.Products {
		batch.Queue(upsertProduct, p.ID, p.Name, p.WholesalePrice, p.RetailPrice, p.Description, p.Image)
	}
	for _, d := range s.Discounts {
		batch.Queue(upsertDiscount, d.ID, d.MinQuantity, d.MaxQuantity, d.DiscountRate, d.MinTotalPrice)
	}
	for _, e := range s.Employees {
		batch.Queue(upsertEmployee, e.ID, e.Name, e.Position, e.Phone, e.Email)
	}
	for _, q := range resetSequences {
		batch.Queue(q)
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert batch")
		}
		slog.Info("upserted rows",
			slog.Int("products", len(s.Products)),
			slog.Int("discounts", len(s.Discounts)),
			slog.Int("employees", len(s.Employees)),
		)
		return nil
	})
}
