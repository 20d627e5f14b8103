// Package handler defines the contract shared by the router, the middleware
// chain and application endpoints.
//
// A HandlerFunc does the request work and returns a Response closure; the
// router renders that closure and hands any rendering error to its
// ErrorHandler. Middleware wraps HandlerFuncs, so cross-cutting concerns such
// as sessions or the WeChat authorization gate see the typed Context before
// the endpoint does.
package handler

import (
	"context"
	"net/http"
)

// Context is the per-request value passed through middleware and handlers.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	Param(key string) string
	SetValue(key, val any)
}

// Response renders the outcome of a handler.
type Response func(w http.ResponseWriter, r *http.Request) error

// HandlerFunc processes a request with a typed context.
type HandlerFunc[C Context] func(ctx C) Response

// ErrorHandler renders errors returned by a Response.
type ErrorHandler[C Context] func(ctx C, err error)

// Middleware decorates a HandlerFunc.
type Middleware[C Context] func(next HandlerFunc[C]) HandlerFunc[C]

// Chain applies middlewares so that the first one listed runs outermost.
func Chain[C Context](h HandlerFunc[C], mws ...Middleware[C]) HandlerFunc[C] {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
