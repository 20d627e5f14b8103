package middleware

import (
	"errors"
	"io"
	"log/slog"

	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/kv"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/response"
	"github.com/dmitrymomot/wxauth/core/session"
)

type sessionKey struct{}

// SessionTransport loads and stores sessions for a request.
type SessionTransport[Data any] interface {
	Load(handler.Context) (session.Session[Data], error)
	Store(handler.Context, session.Session[Data]) (session.Session[Data], error)
}

// SessionConfig configures the session middleware.
type SessionConfig[C handler.Context, Data any] struct {
	Skip      func(ctx C) bool
	Transport SessionTransport[Data]
	Logger    *slog.Logger
	// RequireAuth rejects requests without an authenticated session.
	RequireAuth bool
	// ErrorHandler builds the response for load, store and auth failures.
	// The default answers 503 for store failures and 401 otherwise.
	ErrorHandler func(ctx C, err error) handler.Response
}

// Session loads the request session into the context and stores whatever
// session is in the context once the handler returns.
func Session[C handler.Context, Data any](transport SessionTransport[Data]) handler.Middleware[C] {
	return SessionWithConfig(SessionConfig[C, Data]{Transport: transport})
}

func SessionWithConfig[C handler.Context, Data any](cfg SessionConfig[C, Data]) handler.Middleware[C] {
	if cfg.Transport == nil {
		panic("session middleware: transport is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultSessionErrorHandler[C]
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			sess, err := cfg.Transport.Load(ctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return response.Error(ctxErr)
				}
				cfg.Logger.ErrorContext(ctx, "failed to load session", logger.Error(err))
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.RequireAuth && !sess.IsAuthenticated() {
				return cfg.ErrorHandler(ctx, response.ErrUnauthorized)
			}

			ctx.SetValue(sessionKey{}, sess)
			resp := next(ctx)

			current, ok := GetSession[Data](ctx)
			if !ok {
				return resp
			}
			stored, err := cfg.Transport.Store(ctx, current)
			if err != nil {
				cfg.Logger.ErrorContext(ctx, "failed to store session", logger.Error(err))
				return cfg.ErrorHandler(ctx, err)
			}
			ctx.SetValue(sessionKey{}, stored)
			return resp
		}
	}
}

func defaultSessionErrorHandler[C handler.Context](_ C, err error) handler.Response {
	if errors.Is(err, kv.ErrStoreFailure) {
		return response.Error(response.ErrServiceUnavailable)
	}
	return response.Error(response.ErrUnauthorized)
}

// GetSession returns the session stored by the session middleware.
func GetSession[Data any](ctx handler.Context) (session.Session[Data], bool) {
	if ctx == nil {
		return session.Session[Data]{}, false
	}
	sess, ok := ctx.Value(sessionKey{}).(session.Session[Data])
	return sess, ok
}

// MustGetSession is GetSession for handlers mounted behind the middleware.
func MustGetSession[Data any](ctx handler.Context) session.Session[Data] {
	sess, ok := GetSession[Data](ctx)
	if !ok {
		panic("session not found in context")
	}
	return sess
}

// SetSession replaces the session the middleware will store.
func SetSession[Data any](ctx handler.Context, sess session.Session[Data]) {
	ctx.SetValue(sessionKey{}, sess)
}
