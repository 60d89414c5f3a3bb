package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the database.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// PoolSaturationCheck fails while every pool connection is acquired.
// usage reports acquired and maximum connections.
func PoolSaturationCheck(usage func() (acquired, limit int32)) CheckFunc {
	return func(context.Context) error {
		acquired, limit := usage()
		if limit > 0 && acquired >= limit {
			return errors.Errorf("pool exhausted: %d/%d connections acquired", acquired, limit)
		}
		return nil
	}
}

// GoroutineCountCheck fails when the process runs more goroutines than
// threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
