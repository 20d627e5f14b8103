package server_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/server"
)

func hello() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "hello")
	})
}

func waitBound(t *testing.T, srv *server.Server) string {
	t.Helper()
	require.Eventually(t, func() bool { return srv.Addr() != "127.0.0.1:0" }, 2*time.Second, 10*time.Millisecond)
	return "http://" + srv.Addr()
}

func TestRunServesAndShutsDown(t *testing.T) {
	t.Parallel()
	srv := server.New("127.0.0.1:0", server.WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, srv, hello(),
			server.Every(5*time.Millisecond, nil, "ticker", func(context.Context) error {
				ticks.Add(1)
				return nil
			}),
		)
	}()

	base := waitBound(t, srv)
	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "hello", string(body))
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunStopsOnWorkerFailure(t *testing.T) {
	t.Parallel()
	srv := server.New("127.0.0.1:0")
	boom := errors.New("boom")

	err := server.Run(context.Background(), srv, hello(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestStartTwice(t *testing.T) {
	t.Parallel()
	srv := server.New("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Start(ctx, hello()) }()
	waitBound(t, srv)

	assert.ErrorIs(t, srv.Start(ctx, hello()), server.ErrServerAlreadyRunning)
	assert.NoError(t, srv.Stop())
}

func TestListenFailure(t *testing.T) {
	t.Parallel()
	srv := server.New("256.0.0.1:bad")
	assert.ErrorIs(t, srv.Start(context.Background(), hello()), server.ErrListen)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	_, err := server.NewFromConfig(server.Config{})
	assert.ErrorIs(t, err, server.ErrMissingAddress)

	_, err = server.NewFromConfig(server.Config{Addr: ":0", TLSCertFile: "missing.pem", TLSKeyFile: "missing.key"})
	assert.Error(t, err)

	srv, err := server.NewFromConfig(server.Config{Addr: ":9999"})
	require.NoError(t, err)
	assert.Equal(t, ":9999", srv.Addr())
}
