// Package router adapts go-chi to the typed handler model: routes take
// handler.HandlerFunc values, middleware is handler.Middleware, and rendering
// errors go through a single handler.ErrorHandler.
package router

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/response"
)

// Router registers typed handlers on a chi mux.
type Router[C handler.Context] struct {
	mux          chi.Router
	newContext   func(http.ResponseWriter, *http.Request) C
	errorHandler handler.ErrorHandler[C]
	middlewares  []handler.Middleware[C]
	logger       *slog.Logger
	routed       bool
}

// Option configures a Router.
type Option[C handler.Context] func(*Router[C])

// WithErrorHandler replaces the default JSON error handler.
func WithErrorHandler[C handler.Context](h handler.ErrorHandler[C]) Option[C] {
	return func(r *Router[C]) {
		if h != nil {
			r.errorHandler = h
		}
	}
}

// WithMiddleware registers middlewares at construction time.
func WithMiddleware[C handler.Context](mws ...handler.Middleware[C]) Option[C] {
	return func(r *Router[C]) {
		r.middlewares = append(r.middlewares, mws...)
	}
}

// WithLogger sets the logger used for panics that cannot be rendered.
func WithLogger[C handler.Context](l *slog.Logger) Option[C] {
	return func(r *Router[C]) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a router whose handlers receive contexts built by newContext.
func New[C handler.Context](newContext func(http.ResponseWriter, *http.Request) C, opts ...Option[C]) *Router[C] {
	r := &Router[C]{
		mux:          chi.NewRouter(),
		newContext:   newContext,
		errorHandler: response.JSONErrorHandler[C],
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mux.NotFound(r.wrap(func(C) handler.Response { return response.Error(response.ErrNotFound) }))
	r.mux.MethodNotAllowed(r.wrap(func(C) handler.Response { return response.Error(response.ErrMethodNotAllowed) }))
	return r
}

// NewDefault creates a router using *Context.
func NewDefault(opts ...Option[*Context]) *Router[*Context] {
	return New(NewContext, opts...)
}

// Use appends middlewares. It panics once a route has been registered.
func (r *Router[C]) Use(mws ...handler.Middleware[C]) {
	if r.routed {
		panic(ErrLateMiddleware)
	}
	r.middlewares = append(r.middlewares, mws...)
}

func (r *Router[C]) Get(pattern string, h handler.HandlerFunc[C]) {
	r.Method(http.MethodGet, pattern, h)
}

func (r *Router[C]) Post(pattern string, h handler.HandlerFunc[C]) {
	r.Method(http.MethodPost, pattern, h)
}

func (r *Router[C]) Delete(pattern string, h handler.HandlerFunc[C]) {
	r.Method(http.MethodDelete, pattern, h)
}

// Method registers h for a single HTTP method.
func (r *Router[C]) Method(method, pattern string, h handler.HandlerFunc[C]) {
	r.routed = true
	r.mux.Method(method, pattern, r.wrap(handler.Chain(h, r.middlewares...)))
}

// Route mounts a sub-router under prefix. The sub-router inherits the
// middlewares registered so far and may add its own.
func (r *Router[C]) Route(prefix string, fn func(sub *Router[C])) {
	r.routed = true
	r.mux.Route(prefix, func(m chi.Router) {
		fn(&Router[C]{
			mux:          m,
			newContext:   r.newContext,
			errorHandler: r.errorHandler,
			middlewares:  slices.Clone(r.middlewares),
			logger:       r.logger,
		})
	})
}

// Mount attaches a plain http.Handler, bypassing typed middleware.
func (r *Router[C]) Mount(pattern string, h http.Handler) {
	r.routed = true
	r.mux.Mount(pattern, h)
}

// ServeHTTP implements http.Handler.
func (r *Router[C]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router[C]) wrap(h handler.HandlerFunc[C]) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rw := &responseWriter{ResponseWriter: w}
		ctx := r.newContext(rw, req)

		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			perr := &PanicError{Value: p, Stack: debug.Stack()}
			if rw.Written() {
				r.logger.ErrorContext(req.Context(), "panic after response was written",
					logger.Error(perr),
					slog.String("stack", string(perr.Stack)),
				)
				return
			}
			r.errorHandler(ctx, perr)
		}()

		resp := h(ctx)
		if resp == nil {
			r.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := resp(ctx.ResponseWriter(), ctx.Request()); err != nil {
			if rw.Written() {
				r.logger.ErrorContext(req.Context(), "response failed after headers were sent", logger.Error(err))
				return
			}
			r.errorHandler(ctx, err)
		}
	}
}
