// Package server runs the HTTP listener with graceful shutdown and ties its
// lifetime to background workers through an errgroup.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/wxauth/core/logger"
)

// Server wraps http.Server. Safe for concurrent use.
type Server struct {
	mu             sync.RWMutex
	addr           string
	bound          net.Addr
	server         *http.Server
	logger         *slog.Logger
	shutdown       time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	maxHeaderBytes int
	tlsConfig      *tls.Config
	running        bool
}

// New creates a server listening on addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:           addr,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdown:       DefaultShutdownTimeout,
		readTimeout:    DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
		idleTimeout:    DefaultIdleTimeout,
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the bound listener address once the server is running,
// otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bound != nil {
		return s.bound.String()
	}
	return s.addr
}

// Start serves handler and blocks until ctx is canceled or the listener
// fails. It returns ctx.Err() on cancellation; call Stop to drain.
func (s *Server) Start(ctx context.Context, handler http.Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrListen, err)
	}
	hasTLS := s.tlsConfig != nil
	if hasTLS {
		ln = tls.NewListener(ln, s.tlsConfig)
	}

	s.running = true
	s.bound = ln.Addr()
	s.server = &http.Server{
		Handler:        handler,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		IdleTimeout:    s.idleTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	srv := s.server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "starting server", slog.String("addr", ln.Addr().String()), slog.Bool("tls", hasTLS))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server", logger.Duration(s.shutdown))
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	if err != nil {
		s.logger.Error("server shutdown error", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrShutdown, err)
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// Run returns an errgroup-compatible function that serves until ctx is
// canceled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) func() error {
	return func() error {
		err := s.Start(ctx, handler)
		if stopErr := s.Stop(); stopErr != nil {
			s.logger.Error("failed to stop server", logger.Error(stopErr))
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// Worker is a background task that runs for the server's lifetime. It must
// return when its context is canceled.
type Worker func(ctx context.Context) error

// Run serves handler on srv next to workers. The first failure cancels the
// rest; cancellation of ctx shuts everything down and returns nil.
func Run(ctx context.Context, srv *Server, handler http.Handler, workers ...Worker) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(ctx, handler))
	for _, w := range workers {
		g.Go(func() error {
			if err := w(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Every runs fn on each tick of interval until ctx is canceled. Errors are
// logged and do not stop the loop.
func Every(interval time.Duration, log *slog.Logger, name string, fn func(context.Context) error) Worker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(ctx context.Context) error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if err := fn(ctx); err != nil {
					log.ErrorContext(ctx, "background task failed", logger.Component(name), logger.Error(err))
				}
			}
		}
	}
}
