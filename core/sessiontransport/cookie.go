// Package sessiontransport carries session tokens between the client and the
// session manager.
package sessiontransport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/wxauth/core/cookie"
	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/session"
	"github.com/dmitrymomot/wxauth/pkg/clientip"
)

// CookieConfig provides environment-based configuration for the cookie transport.
type CookieConfig struct {
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
}

// Cookie stores Session.Token in a signed cookie.
type Cookie[Data any] struct {
	manager *session.Manager[Data]
	cookies *cookie.Manager
	name    string
	logger  *slog.Logger
}

// CookieOption configures a Cookie transport.
type CookieOption func(*cookieOptions)

type cookieOptions struct {
	logger *slog.Logger
}

func WithLogger(l *slog.Logger) CookieOption {
	return func(o *cookieOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewCookie creates a cookie-based session transport.
func NewCookie[Data any](mgr *session.Manager[Data], cookies *cookie.Manager, name string, opts ...CookieOption) *Cookie[Data] {
	o := cookieOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cookie[Data]{
		manager: mgr,
		cookies: cookies,
		name:    name,
		logger:  o.logger,
	}
}

// NewCookieFromConfig creates a cookie transport from configuration.
func NewCookieFromConfig[Data any](cfg CookieConfig, mgr *session.Manager[Data], cookies *cookie.Manager, opts ...CookieOption) *Cookie[Data] {
	return NewCookie(mgr, cookies, cfg.CookieName, opts...)
}

// Load returns the session referenced by the request cookie. A missing,
// forged, expired or undecodable session yields a fresh anonymous one.
// Store failures are returned.
func (c *Cookie[Data]) Load(ctx handler.Context) (session.Session[Data], error) {
	token, err := c.token(ctx)
	if err == nil {
		sess, err := c.manager.GetByToken(ctx, token)
		switch {
		case err == nil:
			return sess, nil
		case errors.Is(err, session.ErrInvalidState):
			c.logger.WarnContext(ctx, "discarding undecodable session", logger.Error(err))
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		default:
			return session.Session[Data]{}, err
		}
	} else if errors.Is(err, ErrInvalidToken) {
		c.logger.DebugContext(ctx, "ignoring session cookie", logger.Error(err))
	}

	r := ctx.Request()
	return c.manager.New(session.NewSessionParams{
		IP:        clientip.GetIP(r),
		UserAgent: r.UserAgent(),
	})
}

// Store persists sess and keeps the cookie in step with it. A logged out
// session clears the cookie.
func (c *Cookie[Data]) Store(ctx handler.Context, sess session.Session[Data]) (session.Session[Data], error) {
	stored, err := c.manager.Store(ctx, sess)
	if errors.Is(err, session.ErrNotAuthenticated) {
		c.cookies.Delete(ctx.ResponseWriter(), c.name)
		return stored, nil
	}
	if err != nil {
		return stored, err
	}
	if stored.IsModified() {
		if err := c.save(ctx, stored); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

// Delete removes the session from the store and clears the cookie.
func (c *Cookie[Data]) Delete(ctx handler.Context, sess session.Session[Data]) error {
	if err := c.manager.Delete(ctx, sess); err != nil {
		return err
	}
	c.cookies.Delete(ctx.ResponseWriter(), c.name)
	return nil
}

func (c *Cookie[Data]) save(ctx handler.Context, sess session.Session[Data]) error {
	until := time.Until(sess.ExpiresAt)
	if until <= 0 {
		return fmt.Errorf("cannot save expired session (expired %v ago)", -until)
	}
	return c.cookies.SetSigned(ctx.ResponseWriter(), c.name, sess.Token,
		cookie.WithHTTPOnly(true),
		cookie.WithMaxAge(int(until.Seconds())),
	)
}

func (c *Cookie[Data]) token(ctx handler.Context) (string, error) {
	token, err := c.cookies.GetSigned(ctx.Request(), c.name)
	switch {
	case errors.Is(err, cookie.ErrCookieNotFound):
		return "", ErrNoToken
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case token == "":
		return "", ErrNoToken
	}
	return token, nil
}
