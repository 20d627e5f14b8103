package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/wxauth/core/handler"
)

// CORSConfig configures cross-origin access to the API routes.
type CORSConfig struct {
	Skip func(ctx handler.Context) bool

	// AllowOrigins lists exact origins. Empty or "*" allows any origin.
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string

	// AllowCredentials is ignored for wildcard origins.
	AllowCredentials bool

	// MaxAge caches preflight responses, in seconds.
	MaxAge int
}

// DefaultCORSConfig mirrors what the WeChat H5 front ends send.
var DefaultCORSConfig = CORSConfig{
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPut,
		http.MethodPatch,
		http.MethodPost,
		http.MethodDelete,
	},
	AllowHeaders: []string{
		"Authorization",
		"Origin",
		"No-Cache",
		"X-Requested-With",
		"If-Modified-Since",
		"Pragma",
		"Last-Modified",
		"Cache-Control",
		"Expires",
		"Content-Type",
		"X-Request-ID",
	},
	AllowCredentials: true,
	MaxAge:           1728000,
}

func CORS[C handler.Context](origins ...string) handler.Middleware[C] {
	cfg := DefaultCORSConfig
	cfg.AllowOrigins = origins
	return CORSWithConfig[C](cfg)
}

// CORSWithConfig answers preflight requests with 204 and decorates every
// other response from an allowed origin.
func CORSWithConfig[C handler.Context](cfg CORSConfig) handler.Middleware[C] {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = DefaultCORSConfig.AllowMethods
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = DefaultCORSConfig.AllowHeaders
	}

	allowMethods := strings.Join(cfg.AllowMethods, ",")
	allowHeaders := strings.Join(cfg.AllowHeaders, ",")
	wildcard := len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*")

	resolve := func(origin string) (string, bool) {
		switch {
		case wildcard && (origin == "" || !cfg.AllowCredentials):
			return "*", true
		case wildcard:
			return origin, true
		case origin != "" && slices.Contains(cfg.AllowOrigins, origin):
			return origin, true
		}
		return "", false
	}

	setHeaders := func(h http.Header, allowed string) {
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Timing-Allow-Origin", "*")
		if cfg.AllowCredentials && allowed != "*" {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Add("Vary", "Origin")
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			req := ctx.Request()
			allowed, ok := resolve(req.Header.Get("Origin"))

			if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
				method := req.Header.Get("Access-Control-Request-Method")
				if !ok || !slices.Contains(cfg.AllowMethods, method) {
					return func(w http.ResponseWriter, _ *http.Request) error {
						w.WriteHeader(http.StatusForbidden)
						return nil
					}
				}
				return func(w http.ResponseWriter, _ *http.Request) error {
					h := w.Header()
					setHeaders(h, allowed)
					h.Set("Access-Control-Allow-Methods", allowMethods)
					h.Set("Access-Control-Allow-Headers", allowHeaders)
					if cfg.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}
					w.WriteHeader(http.StatusNoContent)
					return nil
				}
			}

			resp := next(ctx)
			if !ok {
				return resp
			}
			return func(w http.ResponseWriter, r *http.Request) error {
				setHeaders(w.Header(), allowed)
				return resp(w, r)
			}
		}
	}
}
