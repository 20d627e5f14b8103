package middleware

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/logger"
)

type requestIDContextKey struct{}

// maxRequestIDLength bounds IDs accepted from clients.
const maxRequestIDLength = 128

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	Skip func(ctx handler.Context) bool
	// Generator creates new request IDs (default: UUID v4).
	Generator func() string
	// HeaderName is read and written (default: X-Request-ID).
	HeaderName string
	// UseExisting trusts an incoming ID header.
	UseExisting bool
}

// RequestID assigns each request a fresh UUID and echoes it in the response.
func RequestID[C handler.Context]() handler.Middleware[C] {
	return RequestIDWithConfig[C](RequestIDConfig{})
}

func RequestIDWithConfig[C handler.Context](cfg RequestIDConfig) handler.Middleware[C] {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Request-ID"
	}
	if cfg.Generator == nil {
		cfg.Generator = func() string { return uuid.New().String() }
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			var id string
			if cfg.UseExisting {
				if existing := ctx.Request().Header.Get(cfg.HeaderName); len(existing) <= maxRequestIDLength {
					id = existing
				}
			}
			if id == "" {
				id = cfg.Generator()
			}

			ctx.SetValue(requestIDContextKey{}, id)
			ctx.ResponseWriter().Header().Set(cfg.HeaderName, id)
			return next(ctx)
		}
	}
}

// GetRequestID returns the request ID stored by RequestID.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok && id != ""
}

// RequestIDExtractor adds request_id to log records. Pass it to
// logger.WithContextExtractors.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := GetRequestID(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}
