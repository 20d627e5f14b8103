package middleware

import (
	"net/http"
	"strconv"

	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/response"
	"github.com/dmitrymomot/wxauth/pkg/clientip"
	"github.com/dmitrymomot/wxauth/pkg/ratelimiter"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	Skip    func(ctx handler.Context) bool
	Limiter ratelimiter.Limiter
	// KeyExtractor defaults to the client IP.
	KeyExtractor func(ctx handler.Context) string
	// ErrorHandler defaults to 429 with a retry_after detail.
	ErrorHandler func(ctx handler.Context, result ratelimiter.Result) handler.Response
	SetHeaders   bool
}

// RateLimit throttles requests per client IP with limiter. Panics if limiter
// is nil.
func RateLimit[C handler.Context](limiter ratelimiter.Limiter) handler.Middleware[C] {
	return RateLimitWithConfig[C](RateLimitConfig{Limiter: limiter, SetHeaders: true})
}

func RateLimitWithConfig[C handler.Context](cfg RateLimitConfig) handler.Middleware[C] {
	if cfg.Limiter == nil {
		panic("ratelimit middleware: limiter is required")
	}
	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = func(ctx handler.Context) string {
			return clientip.GetIP(ctx.Request())
		}
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ handler.Context, result ratelimiter.Result) handler.Response {
			err := response.ErrTooManyRequests
			if wait := result.RetryAfter(); wait > 0 {
				err = err.WithDetails(map[string]any{"retry_after": int(wait.Seconds())})
			}
			return response.Error(err)
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			result, err := cfg.Limiter.Allow(ctx, cfg.KeyExtractor(ctx))
			if err != nil {
				return response.Error(response.ErrInternalServerError.WithError(err))
			}

			var resp handler.Response
			if result.Allowed() {
				resp = next(ctx)
			} else {
				resp = cfg.ErrorHandler(ctx, result)
			}
			if cfg.SetHeaders {
				return withRateLimitHeaders(resp, result)
			}
			return resp
		}
	}
}

func withRateLimitHeaders(resp handler.Response, result ratelimiter.Result) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		if !result.Allowed() {
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter().Seconds())))
		}
		return resp(w, r)
	}
}
