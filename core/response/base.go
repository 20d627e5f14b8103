// Package response provides handler.Response constructors for text, JSON,
// binary and redirect bodies together with the HTTPError type and the
// error handlers the router uses to render failures.
package response

import (
	"net/http"
	"strconv"

	"github.com/dmitrymomot/wxauth/core/handler"
)

// Render executes resp against the context's writer and falls back to a
// plain 500 if rendering itself fails.
func Render(ctx handler.Context, resp handler.Response) {
	if resp == nil {
		return
	}
	if err := resp(ctx.ResponseWriter(), ctx.Request()); err != nil {
		http.Error(ctx.ResponseWriter(), err.Error(), http.StatusInternalServerError)
	}
}

// String writes a text/plain body with 200 OK.
func String(content string) handler.Response {
	return StringWithStatus(content, http.StatusOK)
}

// StringWithStatus writes a text/plain body with the given status.
func StringWithStatus(content string, status int) handler.Response {
	return Bytes([]byte(content), "text/plain; charset=utf-8", status)
}

// Bytes writes raw content. A zero status means 200 OK.
func Bytes(content []byte, contentType string, status int) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if len(content) == 0 {
			return nil
		}
		_, err := w.Write(content)
		return err
	}
}

// Image writes binary image data and lets clients cache it for maxAge seconds.
func Image(content []byte, contentType string, maxAge int) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		if maxAge > 0 {
			w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
		}
		return Bytes(content, contentType, http.StatusOK)(w, r)
	}
}

// NoContent writes 204 No Content.
func NoContent() handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

// Error defers err to the router's error handler.
func Error(err error) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		return err
	}
}
