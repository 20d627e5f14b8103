package app

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/wxauth/core/authflow"
	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/health"
	"github.com/dmitrymomot/wxauth/core/response"
	"github.com/dmitrymomot/wxauth/core/router"
	"github.com/dmitrymomot/wxauth/middleware"
)

// callbackPath receives the code of a QR code login.
const callbackPath = "/api/wechat-auth/wx-login-callback"

func (a *App) routes() *router.Router[*router.Context] {
	r := router.NewDefault(router.WithLogger[*router.Context](a.logger))
	r.Use(
		middleware.RequestID[*router.Context](),
		middleware.LoggingWithLogger[*router.Context](a.logger),
	)

	r.Get("/health/live", health.Liveness[*router.Context])
	r.Get("/health/ready", health.Readiness[*router.Context](a.logger, a.checks...))
	r.Mount("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	session := middleware.Session[*router.Context, authflow.Identity](a.transport)

	r.Route("/api", func(api *router.Router[*router.Context]) {
		api.Use(middleware.CORS[*router.Context](a.cfg.Auth.CORSOrigins...), session)

		// Preflights are answered by the CORS middleware before this handler.
		api.Method(http.MethodOptions, "/*", func(*router.Context) handler.Response { return response.NoContent() })

		api.Get("/wechat-auth/wx-config", a.wxConfig)
		api.Get("/wechat-auth/login-qrcode", handler.Chain(a.loginQRCode, a.throttle()...))
		api.Get("/wechat-auth/wx-login-callback", handler.Chain(a.wxLoginCallback, a.throttle()...))
		api.Post("/receipt", handler.Chain(a.createReceipt, a.throttle()...))
		api.Get("/receipt/file/{id}", a.receiptFile)
		api.Get("/cache/stats", a.cacheStats)
		if a.cfg.Auth.CacheAdminToken != "" {
			api.Post("/cache/clear", handler.Chain(a.clearCache, a.requireAdmin()))
		}
		api.Get("/user/me", handler.Chain(a.me, middleware.JWT[*router.Context](a.tokens)))
	})

	if page := a.cfg.Auth.ErrorPage; strings.HasPrefix(page, "/") && !strings.HasPrefix(page, "//") {
		r.Get(page, a.errorPage)
	}
	r.Get("/*", handler.Chain(a.page,
		session,
		middleware.WeChatAuthWithConfig(middleware.WeChatAuthConfig[*router.Context]{
			Flow:      a.flow,
			Cookies:   a.cookies,
			Tokens:    a.tokens,
			Logger:    a.logger,
			ErrorPage: a.cfg.Auth.ErrorPage,
		}),
	))
	return r
}

// requireAdmin accepts requests carrying the cache admin bearer token.
func (a *App) requireAdmin() handler.Middleware[*router.Context] {
	want := []byte("Bearer " + a.cfg.Auth.CacheAdminToken)
	return func(next handler.HandlerFunc[*router.Context]) handler.HandlerFunc[*router.Context] {
		return func(ctx *router.Context) handler.Response {
			got := []byte(ctx.Request().Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				return response.Error(response.ErrUnauthorized)
			}
			return next(ctx)
		}
	}
}

// throttle limits login and rendering endpoints per client IP when a limiter is configured.
func (a *App) throttle() []handler.Middleware[*router.Context] {
	if a.limiter == nil {
		return nil
	}
	return []handler.Middleware[*router.Context]{middleware.RateLimit[*router.Context](a.limiter)}
}
