//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/repository"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = container.Terminate(ctx) }()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection string: %v\n", err)
		return 1
	}
	if err := repository.RunMigrations(dsn); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}

	pool, err = repository.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pool: %v\n", err)
		return 1
	}
	defer pool.Close()

	return m.Run()
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func truncate(t *testing.T) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE transaction_details, transactions, cart_items, carts,
		discounts, products, customers RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func seedCustomer(t *testing.T, email string) *customer.Customer {
	t.Helper()
	c := &customer.Customer{
		Name:          "Acme",
		Phone:         "+1",
		ContactPerson: "Jo",
		Address:       "1 Main St",
		Email:         email,
		PasswordHash:  "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	}
	require.NoError(t, repository.NewCustomerRepository(pool).Create(context.Background(), c))
	return c
}

func seedProduct(t *testing.T, name, wholesale, retail, description string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (name, wholesale_price, retail_price, description) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, d(wholesale), d(retail), description,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestCustomerRepository(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := repository.NewCustomerRepository(pool)

	c := seedCustomer(t, "buyer@example.com")
	assert.NotZero(t, c.ID)

	dup := *c
	err := repo.Create(ctx, &dup)
	require.ErrorIs(t, err, customer.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "BUYER@example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = repo.GetByID(ctx, c.ID+100)
	require.ErrorIs(t, err, customer.ErrNotFound)

	other := seedCustomer(t, "other@example.com")
	other.Email = "Buyer@Example.com"
	require.ErrorIs(t, repo.Update(ctx, other), customer.ErrEmailTaken)
}

func TestProductRepository(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := repository.NewProductRepository(pool)

	seedProduct(t, "Notebook", "4.00", "5.25", "lined paper")
	stapler := seedProduct(t, "Stapler", "7.00", "9.99", "heavy duty")
	seedProduct(t, "Pen", "0.50", "1.00", "blue ink 100%")

	t.Run("list filtered and sorted", func(t *testing.T) {
		lt := d("9")
		ps, err := repo.List(ctx, product.Filter{PriceLT: &lt, Sort: product.SortRetailPriceDesc})
		require.NoError(t, err)
		require.Len(t, ps, 2)
		assert.Equal(t, "Notebook", ps[0].Name)
		assert.Equal(t, "Pen", ps[1].Name)
	})

	t.Run("name filter is case insensitive", func(t *testing.T) {
		ps, err := repo.List(ctx, product.Filter{Name: "STAP"})
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, "Stapler", ps[0].Name)
	})

	t.Run("search numeric matches price", func(t *testing.T) {
		q, err := product.ParseQuery("7")
		require.NoError(t, err)
		ps, err := repo.Search(ctx, q)
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, "Stapler", ps[0].Name)
	})

	t.Run("search fractional number matches id by integral part", func(t *testing.T) {
		q, err := product.ParseQuery(fmt.Sprintf("%d.5", stapler))
		require.NoError(t, err)
		ps, err := repo.Search(ctx, q)
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, stapler, ps[0].ID)
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		q, err := product.ParseQuery("0%")
		require.NoError(t, err)
		ps, err := repo.Search(ctx, q)
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, "Pen", ps[0].Name)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999)
		require.ErrorIs(t, err, product.ErrNotFound)
	})
}

func TestCartRepository(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := repository.NewCartRepository(pool)

	c := seedCustomer(t, "cart@example.com")
	pid := seedProduct(t, "Widget", "4.00", "5.00", "")

	_, err := repo.GetByCustomer(ctx, c.ID)
	require.ErrorIs(t, err, cart.ErrNotFound)

	t.Run("concurrent get or create yields one cart", func(t *testing.T) {
		ids := make([]int64, 8)
		var g errgroup.Group
		for i := range ids {
			g.Go(func() error {
				crt, err := repo.GetOrCreate(ctx, c.ID)
				if err != nil {
					return err
				}
				ids[i] = crt.ID
				return nil
			})
		}
		require.NoError(t, g.Wait())
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		assert.Equal(t, 1, count(t, "carts"))
	})

	crt, err := repo.GetOrCreate(ctx, c.ID)
	require.NoError(t, err)

	t.Run("concurrent adds do not lose updates", func(t *testing.T) {
		var g errgroup.Group
		for range 10 {
			g.Go(func() error {
				_, err := repo.AddItem(ctx, crt.ID, pid, 1)
				return err
			})
		}
		require.NoError(t, g.Wait())

		lines, err := repo.ListLines(ctx, crt.ID)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 10, lines[0].Quantity)
		assert.Equal(t, "Widget", lines[0].ProductName)
	})

	t.Run("update remove clear", func(t *testing.T) {
		lines, err := repo.ListLines(ctx, crt.ID)
		require.NoError(t, err)
		itemID := lines[0].ID

		it, err := repo.UpdateItem(ctx, itemID, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, it.Quantity)

		require.NoError(t, repo.RemoveItem(ctx, itemID))
		require.ErrorIs(t, repo.RemoveItem(ctx, itemID), cart.ErrItemNotFound)
		_, err = repo.UpdateItem(ctx, itemID, 1)
		require.ErrorIs(t, err, cart.ErrItemNotFound)

		_, err = repo.AddItem(ctx, crt.ID, pid, 2)
		require.NoError(t, err)
		require.NoError(t, repo.Clear(ctx, crt.ID))
		assert.Equal(t, 0, count(t, "cart_items"))
		assert.Equal(t, 1, count(t, "carts"))

		got, err := repo.GetByCustomer(ctx, c.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.LastUpdated)
	})
}

func TestOrderStore(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*customer.Customer, *cart.Cart) {
		t.Helper()
		truncate(t)
		c := seedCustomer(t, "orders@example.com")
		pid := seedProduct(t, "Widget", "4.00", "5.00", "")

		require.NoError(t, repository.NewDiscountRepository(pool).Create(ctx, &discount.Tier{
			MinQuantity: 5, MaxQuantity: 20, MinTotalPrice: d("0"), Rate: d("0.1"),
		}))

		carts := repository.NewCartRepository(pool)
		crt, err := carts.GetOrCreate(ctx, c.ID)
		require.NoError(t, err)
		_, err = carts.AddItem(ctx, crt.ID, pid, 10)
		require.NoError(t, err)
		return c, crt
	}

	newService := func(t *testing.T, opts ...order.Option) *order.Service {
		t.Helper()
		svc, err := order.NewService(repository.NewOrderStore(pool), opts...)
		require.NoError(t, err)
		return svc
	}

	t.Run("place order commits and clears cart", func(t *testing.T) {
		c, _ := setup(t)
		svc := newService(t)

		r, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{CustomerID: c.ID})
		require.NoError(t, err)
		assert.True(t, d("45").Equal(r.Total))
		assert.True(t, d("5").Equal(r.DiscountAmount))
		assert.Equal(t, 0, count(t, "cart_items"))
		assert.Equal(t, 1, count(t, "transactions"))
		assert.Equal(t, 1, count(t, "transaction_details"))

		got, err := svc.GetOrder(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, r.Total.Equal(got.Total))
		require.Len(t, got.Lines, 1)
		assert.Equal(t, "Widget", got.Lines[0].ProductName)

		list, err := svc.ListOrders(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, r.ID, list[0].ID)
	})

	t.Run("concurrent placements convert the cart once", func(t *testing.T) {
		c, _ := setup(t)
		svc := newService(t)

		const workers = 4
		errs := make([]error, workers)
		var g errgroup.Group
		for i := range workers {
			g.Go(func() error {
				_, errs[i] = svc.PlaceOrder(ctx, order.PlaceOrderRequest{CustomerID: c.ID})
				return nil
			})
		}
		require.NoError(t, g.Wait())

		placed := 0
		for _, err := range errs {
			if err == nil {
				placed++
				continue
			}
			var oe *order.Error
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, order.ReasonCartEmpty, oe.Reason)
		}
		assert.Equal(t, 1, placed)
		assert.Equal(t, 1, count(t, "transactions"))
		assert.Equal(t, 0, count(t, "cart_items"))
	})

	t.Run("failure after insert rolls back", func(t *testing.T) {
		c, crt := setup(t)
		store := repository.NewOrderStore(pool)

		errBoom := errors.New("boom")
		err := store.InTx(ctx, func(ctx context.Context, tx order.Tx) error {
			tr := &order.Transaction{CustomerID: c.ID, EmployeeID: order.DefaultEmployeeID, CreatedAt: time.Now()}
			if err := tx.CreateTransaction(ctx, tr); err != nil {
				return err
			}
			if err := tx.ClearCart(ctx, crt.ID); err != nil {
				return err
			}
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 0, count(t, "transactions"))
		assert.Equal(t, 1, count(t, "cart_items"))
	})

	t.Run("panic rolls back", func(t *testing.T) {
		c, _ := setup(t)
		store := repository.NewOrderStore(pool)

		assert.Panics(t, func() {
			_ = store.InTx(ctx, func(ctx context.Context, tx order.Tx) error {
				tr := &order.Transaction{CustomerID: c.ID, EmployeeID: order.DefaultEmployeeID, CreatedAt: time.Now()}
				if err := tx.CreateTransaction(ctx, tr); err != nil {
					return err
				}
				panic("boom")
			})
		})
		assert.Equal(t, 0, count(t, "transactions"))
	})

	t.Run("unknown employee rejected", func(t *testing.T) {
		c, _ := setup(t)
		svc := newService(t)

		_, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{CustomerID: c.ID, EmployeeID: 999})
		var oe *order.Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, order.ReasonEmployeeNotFound, oe.Reason)
		assert.Equal(t, 1, count(t, "cart_items"))
	})

	t.Run("frozen history ignores price changes", func(t *testing.T) {
		c, _ := setup(t)
		r, err := newService(t).PlaceOrder(ctx, order.PlaceOrderRequest{CustomerID: c.ID})
		require.NoError(t, err)

		_, err = pool.Exec(ctx, `UPDATE products SET retail_price = 8.00`)
		require.NoError(t, err)

		live, err := newService(t).GetOrder(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, d("72").Equal(live.Total))

		frozen, err := newService(t, order.WithHistoryPricing(order.HistoryFrozen)).GetOrder(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, d("45").Equal(frozen.Total))
	})

	t.Run("missing order", func(t *testing.T) {
		truncate(t)
		_, err := newService(t).GetOrder(ctx, 12345)
		require.ErrorIs(t, err, order.ErrNotFound)
	})
}
