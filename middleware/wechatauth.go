package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/wxauth/core/authflow"
	"github.com/dmitrymomot/wxauth/core/cookie"
	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/response"
	"github.com/dmitrymomot/wxauth/pkg/jwt"
)

// Cookies written after a successful authorization.
const (
	JWTCookieName    = "jwt"
	UserIDCookieName = "userId"
)

var errNoSession = errors.New("wechat auth: session middleware is not installed")

// WeChatAuthConfig configures the WeChat authorization gate.
type WeChatAuthConfig[C handler.Context] struct {
	Skip func(ctx C) bool
	Flow *authflow.Flow
	// Cookies writes the jwt and userId cookies.
	Cookies *cookie.Manager
	// Tokens issues the jwt cookie value. Without it no jwt cookie is set.
	Tokens *jwt.Service
	Logger *slog.Logger
	// ErrorPage, when set, receives failed authorizations as a redirect
	// instead of a 401 response.
	ErrorPage string
	// ErrorHandler overrides ErrorPage and the default 401.
	ErrorHandler func(ctx C, err error) handler.Response
}

// WeChatAuth gates requests behind the WeChat web authorization flow.
//
// It must run inside the Session middleware: it reads the session from the
// context and, after a successful code exchange, puts the authenticated
// session back so the Session middleware persists it. Only then is the
// redirect rendered, carrying the jwt and userId cookies.
func WeChatAuth[C handler.Context](flow *authflow.Flow, cookies *cookie.Manager, tokens *jwt.Service) handler.Middleware[C] {
	return WeChatAuthWithConfig(WeChatAuthConfig[C]{Flow: flow, Cookies: cookies, Tokens: tokens})
}

func WeChatAuthWithConfig[C handler.Context](cfg WeChatAuthConfig[C]) handler.Middleware[C] {
	if cfg.Flow == nil {
		panic("wechat auth middleware: flow is required")
	}
	if cfg.Cookies == nil {
		panic("wechat auth middleware: cookie manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ C, _ error) handler.Response {
			if cfg.ErrorPage != "" {
				return response.Redirect(cfg.ErrorPage)
			}
			return response.Error(response.ErrUnauthorized)
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			sess, ok := GetSession[authflow.Identity](ctx)
			if !ok {
				cfg.Logger.ErrorContext(ctx, "authorization skipped", logger.Error(errNoSession))
				return cfg.ErrorHandler(ctx, errNoSession)
			}

			out, err := cfg.Flow.Step(ctx, authflow.RequestFromHTTP(ctx.Request()), sess)
			if err != nil {
				cfg.Logger.WarnContext(ctx, "authorization failed",
					logger.Component("wechatauth"),
					logger.State(out.State.String()),
					logger.Error(err),
				)
				return cfg.ErrorHandler(ctx, err)
			}

			switch out.State {
			case authflow.NeedsRedirect:
				return response.Redirect(out.RedirectTo)
			case authflow.SessionWritten:
				SetSession(ctx, out.Session)
				return cfg.completed(ctx, out)
			default:
				return next(ctx)
			}
		}
	}
}

func (cfg WeChatAuthConfig[C]) completed(ctx C, out authflow.Outcome) handler.Response {
	ident := out.Session.Data
	write, err := LoginCookies(cfg.Cookies, cfg.Tokens, ident)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "failed to issue login token", logger.Error(err))
		return cfg.ErrorHandler(ctx, err)
	}

	cfg.Logger.InfoContext(ctx, "authorization completed",
		logger.Component("wechatauth"),
		logger.UserID(ident.UserID),
	)
	return response.Before(response.Redirect(out.RedirectTo), write)
}

// LoginCookies issues the login token for ident and returns a writer for the
// jwt and userId cookies. Run the writer from the response so the cookies are
// only sent once the session has been stored. A nil tokens skips the jwt
// cookie.
func LoginCookies(cookies *cookie.Manager, tokens *jwt.Service, ident authflow.Identity) (func(http.ResponseWriter) error, error) {
	var token jwt.Token
	if tokens != nil {
		var err error
		token, err = tokens.Issue(ident.UserID, jwt.Claims{
			OpenID:   ident.ProviderID,
			Nickname: ident.DisplayName,
		})
		if err != nil {
			return nil, err
		}
	}

	return func(w http.ResponseWriter) error {
		if token.Value != "" {
			if err := cookies.Set(w, JWTCookieName, token.Value,
				cookie.WithHTTPOnly(true),
				cookie.WithSameSite(http.SameSiteStrictMode),
				cookie.WithMaxAge(int(time.Until(token.ExpiresAt).Seconds())),
			); err != nil {
				return err
			}
		}
		return cookies.Set(w, UserIDCookieName, ident.UserID, cookie.WithHTTPOnly(false))
	}, nil
}
