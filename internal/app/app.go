package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, serves HTTP until ctx is cancelled and then
// shuts down gracefully. It is the single wiring point of the API server.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	srv, err := newAPI(pool, cfg, m.MeterProvider())
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(srv.router,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("storefront-api", m),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.probes.Run(ctx, cfg.Health.Interval)
	})
	g.Go(func() error {
		return srv.authLimit.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		srv.probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		srv.probes.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	return g.Wait()
}

// api is the HTTP surface over a database pool.
type api struct {
	router    chi.Router
	probes    *health.Health
	authLimit *httpmiddleware.Throttler
}

func newAPI(pool *pgxpool.Pool, cfg *Config, mp metric.MeterProvider) (*api, error) {
	historyPricing, err := order.ParseHistoryPricing(cfg.Orders.HistoryPricing)
	if err != nil {
		return nil, errors.Wrap(err, "history pricing")
	}

	// Repositories.
	customerRepo := repository.NewCustomerRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderStore := repository.NewOrderStore(pool)

	// Domain services.
	discounts := discount.NewSelector(discountRepo)
	customers := customer.NewService(customerRepo)
	products := product.NewService(productRepo)
	carts := cart.NewService(cartRepo, customerRepo, productRepo, discounts)
	orders, err := order.NewService(orderStore,
		order.WithHistoryPricing(historyPricing),
		order.WithMeterProvider(mp),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	probes := health.New()
	probes.Add(health.Readiness, "postgres", 5*time.Second, health.DatabaseCheck(pool))
	probes.Add(health.Readiness, "postgres_pool", time.Second, health.PoolSaturationCheck(func() (int32, int32) {
		s := pool.Stat()
		return s.AcquiredConns(), s.MaxConns()
	}))
	probes.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))

	authLimit := httpmiddleware.NewThrottler(httpmiddleware.ThrottleConfig{
		Rate:    cfg.AuthLimit.Rate,
		Burst:   cfg.AuthLimit.Burst,
		IdleTTL: cfg.AuthLimit.IdleTTL,
	})

	h := handler.NewHandler(customers, carts, orders, products, discounts)

	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	r.Get("/livez", probes.Live)
	r.Get("/readyz", probes.Ready)
	r.Mount("/api", h.Routes(authLimit.Middleware()))

	return &api{router: r, probes: probes, authLimit: authLimit}, nil
}
