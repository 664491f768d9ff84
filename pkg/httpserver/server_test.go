package httpserver_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/httpserver"
	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

func TestRunAndShutdown(t *testing.T) {
	t.Parallel()

	var stopped atomic.Bool
	bound := make(chan net.Addr, 1)
	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0"},
		httpserver.WithShutdownTimeout(200*time.Millisecond),
		httpserver.WithStartHook(func(_ *slog.Logger, addr net.Addr) { bound <- addr }),
		httpserver.WithStopHook(func(*slog.Logger, net.Addr) { stopped.Store(true) }),
	)
	assert.Nil(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
	}()
	addr := <-bound
	assert.Equal(t, addr.String(), srv.Addr().String())

	resp, err := http.Get("http://" + addr.String())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "run did not return")
	}
	assert.True(t, stopped.Load())
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	bound := make(chan net.Addr, 1)
	srv := httpserver.New(
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithStartHook(func(_ *slog.Logger, addr net.Addr) { bound <- addr }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()
	<-bound

	err := srv.Run(ctx, nil)
	assert.ErrorIs(t, err, httpserver.ErrAlreadyRuns)

	cancel()
	assert.NoError(t, <-done)
}

func TestStartError(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.WithAddr("256.0.0.1:99999"))
	err := srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestShutdownBeforeRun(t *testing.T) {
	t.Parallel()
	srv := httpserver.New()
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestOptionsIgnoreZeroValues(t *testing.T) {
	t.Parallel()

	bound := make(chan net.Addr, 1)
	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0"},
		httpserver.WithAddr(""),
		httpserver.WithShutdownTimeout(-time.Second),
		httpserver.WithLogger(nil),
		httpserver.WithStartHook(nil),
		httpserver.WithStartHook(func(_ *slog.Logger, addr net.Addr) { bound <- addr }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()

	addr := <-bound
	host, _, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)

	cancel()
	assert.NoError(t, <-done)
}

func TestHealthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		httpserver.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		ok := func(context.Context) error { return nil }
		rec := httptest.NewRecorder()
		httpserver.ReadinessHandler(logger.Nop(), time.Second, ok, ok)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		failing := func(context.Context) error { return errors.New("db down") }
		rec := httptest.NewRecorder()
		httpserver.ReadinessHandler(logger.Nop(), time.Second, failing)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
	})
}
