package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the API server configuration, loadable from environment
// variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Orders      OrdersConfig
	AuthLimit   AuthLimitConfig
	Health      HealthConfig
	Graceful    GracefulConfig
}

// OrdersConfig controls order history rendering.
type OrdersConfig struct {
	HistoryPricing string `default:"live" usage:"Unit price used for past orders: live or frozen" flag:"history-pricing"`
}

// AuthLimitConfig throttles /register and /login per client IP.
type AuthLimitConfig struct {
	Rate    float64       `default:"1"   usage:"Sustained credential requests per second per client"`
	Burst   int           `default:"5"   usage:"Credential request burst per client"`
	IdleTTL time.Duration `default:"10m" usage:"Forget clients idle for this long"`
}

// HealthConfig controls background probe checks.
type HealthConfig struct {
	Interval      time.Duration `default:"10s"   usage:"Interval between health checks"`
	MaxGoroutines int           `default:"10000" usage:"Liveness goroutine threshold"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML files,
// then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	ac.EnvPrefix = "SHOP"
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if _, err := order.ParseHistoryPricing(c.Orders.HistoryPricing); err != nil {
		return errors.Wrap(err, "orders")
	}
	if c.AuthLimit.Rate <= 0 || c.AuthLimit.Burst <= 0 {
		return errors.Errorf("auth limit: rate and burst must be positive, got %v/%d", c.AuthLimit.Rate, c.AuthLimit.Burst)
	}
	return nil
}

// applyPlatformDefaults maps the DATABASE_URL and PORT variables set by
// hosting platforms onto the SHOP_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
