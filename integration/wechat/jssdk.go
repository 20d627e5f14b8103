package wechat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/logger"
)

// ErrEmptyPageURL is returned by JSSDK.Config without a page URL.
var ErrEmptyPageURL = errors.New("wechat: empty page url")

// JSConfig is what a page passes to wx.config.
type JSConfig struct {
	AppID     string `json:"appId"`
	Timestamp int64  `json:"timestamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
	URL       string `json:"url"`
}

// jsCredentials is the cached pair. Both are app-wide, so one entry serves
// every page.
type jsCredentials struct {
	AccessToken string `json:"access_token"`
	Ticket      string `json:"ticket"`
}

// JSSDK signs page URLs with a ticket shared through the cache, so the
// rate-limited credential endpoints are hit once per lifetime across all
// instances.
type JSSDK struct {
	client *Client
	creds  *cache.IO[jsCredentials]
	now    func() time.Time
	nonce  func() string
	logger *slog.Logger
}

// JSSDKOption configures a JSSDK.
type JSSDKOption func(*JSSDK)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) JSSDKOption {
	return func(s *JSSDK) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNonce overrides the nonce source.
func WithNonce(fn func() string) JSSDKOption {
	return func(s *JSSDK) {
		if fn != nil {
			s.nonce = fn
		}
	}
}

// WithJSSDKLogger sets the logger.
func WithJSSDKLogger(l *slog.Logger) JSSDKOption {
	return func(s *JSSDK) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewJSSDK binds client to c.
func NewJSSDK(client *Client, c *cache.Cache, opts ...JSSDKOption) *JSSDK {
	s := &JSSDK{
		client: client,
		now:    time.Now,
		nonce:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:16] },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	key := cache.MustKey("wechat", map[string]string{"appid": client.appID, "kind": "jsapi"})
	s.creds = cache.NewExpiringIO(c, key, client.ticketTTL, s.fetch)
	return s
}

// Config returns a signed wx.config payload for pageURL.
func (s *JSSDK) Config(ctx context.Context, pageURL string) (JSConfig, error) {
	pageURL, _, _ = strings.Cut(pageURL, "#")
	if pageURL == "" {
		return JSConfig{}, ErrEmptyPageURL
	}
	creds, err := s.creds.Get(ctx)
	if err != nil {
		return JSConfig{}, fmt.Errorf("wechat: jssdk credentials: %w", err)
	}

	ts := s.now().Unix()
	nonce := s.nonce()
	return JSConfig{
		AppID:     s.client.appID,
		Timestamp: ts,
		NonceStr:  nonce,
		Signature: Sign(creds.Ticket, nonce, ts, pageURL),
		URL:       pageURL,
	}, nil
}

// Refresh fetches new credentials and replaces the cached pair.
func (s *JSSDK) Refresh(ctx context.Context) error {
	_, err := s.creds.Update(ctx)
	return err
}

func (s *JSSDK) fetch(ctx context.Context) (jsCredentials, time.Duration, error) {
	token, err := s.client.ClientToken(ctx)
	if err != nil {
		return jsCredentials{}, 0, err
	}
	ticket, err := s.client.JSAPITicket(ctx, token.Value)
	if err != nil {
		return jsCredentials{}, 0, err
	}

	ttl := min(token.ExpiresIn, ticket.ExpiresIn, s.client.ticketTTL)
	s.logger.InfoContext(ctx, "jsapi ticket refreshed",
		logger.Component("wechat"),
		logger.Key("ttl", ttl),
	)
	return jsCredentials{AccessToken: token.Value, Ticket: ticket.Value}, ttl, nil
}
