package middleware

import (
	"strings"

	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/response"
	"github.com/dmitrymomot/wxauth/pkg/jwt"
)

type jwtClaimsContextKey struct{}

// JWTConfig configures the login token middleware.
type JWTConfig struct {
	Skip    func(ctx handler.Context) bool
	Service *jwt.Service
	// TokenExtractor defaults to the jwt cookie, then the Authorization header.
	TokenExtractor func(ctx handler.Context) string
	ErrorHandler   func(ctx handler.Context, err error) handler.Response
}

// JWT rejects requests without a valid login token and stores its claims.
func JWT[C handler.Context](service *jwt.Service) handler.Middleware[C] {
	return JWTWithConfig[C](JWTConfig{Service: service})
}

func JWTWithConfig[C handler.Context](cfg JWTConfig) handler.Middleware[C] {
	if cfg.Service == nil {
		panic("jwt middleware: service is required")
	}
	if cfg.TokenExtractor == nil {
		cfg.TokenExtractor = JWTFromMultiple(JWTFromCookie(JWTCookieName), JWTFromAuthHeader())
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ handler.Context, err error) handler.Response {
			return response.Error(response.ErrUnauthorized.WithError(err))
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			token := cfg.TokenExtractor(ctx)
			if token == "" {
				return cfg.ErrorHandler(ctx, jwt.ErrInvalidToken)
			}
			claims, err := cfg.Service.Parse(token)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.SetValue(jwtClaimsContextKey{}, claims)
			return next(ctx)
		}
	}
}

// GetJWTClaims returns the claims stored by the JWT middleware.
func GetJWTClaims(ctx handler.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(jwtClaimsContextKey{}).(*jwt.Claims)
	return claims, ok
}

// JWTFromAuthHeader reads a bearer token.
func JWTFromAuthHeader() func(handler.Context) string {
	return func(ctx handler.Context) string {
		auth := ctx.Request().Header.Get("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
}

func JWTFromCookie(name string) func(handler.Context) string {
	return func(ctx handler.Context) string {
		c, err := ctx.Request().Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// JWTFromMultiple returns the first non-empty token.
func JWTFromMultiple(extractors ...func(handler.Context) string) func(handler.Context) string {
	return func(ctx handler.Context) string {
		for _, extract := range extractors {
			if token := extract(ctx); token != "" {
				return token
			}
		}
		return ""
	}
}
