package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Context is the default handler.Context. Values and deadlines come from the
// underlying request context; path parameters come from chi.
type Context struct {
	w http.ResponseWriter
	r *http.Request
}

// NewContext builds a Context for a request.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{w: w, r: r}
}

func (c *Context) Deadline() (time.Time, bool) { return c.r.Context().Deadline() }
func (c *Context) Done() <-chan struct{} { return c.r.Context().Done() }
func (c *Context) Err() error { return c.r.Context().Err() }
func (c *Context) Value(key any) any { return c.r.Context().Value(key) }

// Request returns the request, including values stored with SetValue.
func (c *Context) Request() *http.Request { return c.r }

// ResponseWriter returns the response writer.
func (c *Context) ResponseWriter() http.ResponseWriter { return c.w }

// Param returns the named path parameter or an empty string.
func (c *Context) Param(key string) string { return chi.URLParam(c.r, key) }

// SetValue stores a request-scoped value visible to later middleware and to
// the rendered Response through the request context.
func (c *Context) SetValue(key, val any) {
	c.r = c.r.WithContext(context.WithValue(c.r.Context(), key, val))
}
