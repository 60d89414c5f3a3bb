package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, handler http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestLive(t *testing.T) {
	h := New()
	h.Add(Liveness, "goroutines", time.Second, func(context.Context) error { return nil })

	code, body := probe(t, h.Live)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestFailureThreshold(t *testing.T) {
	h := New()
	h.Add(Liveness, "db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	c := h.checks[0]

	for range failAfter - 1 {
		c.run(context.Background())
	}
	code, _ := probe(t, h.Live)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	c.run(context.Background())
	code, body := probe(t, h.Live)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
}

func TestRecovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	h := New()
	h.SetReady(true)
	h.Add(Readiness, "postgres", time.Second, func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	})
	c := h.checks[0]
	for range failAfter {
		c.run(context.Background())
	}
	code, _ := probe(t, h.Ready)
	require.Equal(t, http.StatusServiceUnavailable, code)

	failing.Store(false)
	c.run(context.Background())
	code, body := probe(t, h.Ready)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestReadyFlag(t *testing.T) {
	h := New()

	code, body := probe(t, h.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, _ = probe(t, h.Ready)
	assert.Equal(t, http.StatusOK, code)

	h.SetReady(false)
	code, _ = probe(t, h.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestKindsAreSeparate(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.Add(Readiness, "postgres", time.Second, func(context.Context) error { return errors.New("down") })
	for range failAfter {
		h.checks[0].run(context.Background())
	}

	code, _ := probe(t, h.Live)
	assert.Equal(t, http.StatusOK, code)
	code, _ = probe(t, h.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.Add(Liveness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	for range failAfter {
		h.checks[0].run(context.Background())
	}
	_, body := probe(t, h.Live)
	assert.Equal(t, context.DeadlineExceeded.Error(), body.Checks["slow"])
}

func TestRun(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.Add(Liveness, "counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	t.Run("Database", func(t *testing.T) {
		assert.NoError(t, DatabaseCheck(pinger{})(ctx))
		err := DatabaseCheck(pinger{err: errors.New("refused")})(ctx)
		assert.EqualError(t, err, "ping: refused")
	})
	t.Run("PoolSaturation", func(t *testing.T) {
		usage := func(acquired, limit int32) func() (int32, int32) {
			return func() (int32, int32) { return acquired, limit }
		}
		assert.NoError(t, PoolSaturationCheck(usage(3, 10))(ctx))
		assert.NoError(t, PoolSaturationCheck(usage(0, 0))(ctx))
		assert.EqualError(t, PoolSaturationCheck(usage(10, 10))(ctx), "pool exhausted: 10/10 connections acquired")
	})
	t.Run("Goroutines", func(t *testing.T) {
		assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
		assert.Error(t, GoroutineCountCheck(0)(ctx))
	})
}
