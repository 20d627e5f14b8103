package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/wxauth/core/handler"
)

// Before runs fn against the writer before response renders. An error from
// fn aborts rendering and is returned instead.
func Before(response handler.Response, fn func(w http.ResponseWriter) error) handler.Response {
	if response == nil || fn == nil {
		return response
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := fn(w); err != nil {
			return err
		}
		return response(w, r)
	}
}

// WithCache sets caching headers on response. A non-positive maxAge forbids
// caching.
func WithCache(response handler.Response, maxAge time.Duration) handler.Response {
	if response == nil {
		return nil
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		if maxAge > 0 {
			w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
			w.Header().Set("Expires", time.Now().Add(maxAge).UTC().Format(http.TimeFormat))
		} else {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}
		return response(w, r)
	}
}
