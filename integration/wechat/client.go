// Package wechat is a client for the WeChat official-account OAuth and JS-SDK
// APIs.
//
// Every upstream call is a GET whose JSON body either carries the expected
// fields or an {errcode, errmsg} envelope; both cases and transport failures
// surface as *ProviderError.
package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/wxauth/core/logger"
)

const maxResponseBytes = 1 << 20

// Client calls the WeChat API for one app.
type Client struct {
	appID     string
	appSecret string
	apiBase   string
	openBase  string
	lang      string
	ticketTTL time.Duration
	http      *http.Client
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		apiBase:   strings.TrimRight(orDefault(cfg.APIBaseURL, "https://api.weixin.qq.com"), "/"),
		openBase:  strings.TrimRight(orDefault(cfg.OpenBaseURL, "https://open.weixin.qq.com"), "/"),
		lang:      orDefault(cfg.Lang, "zh_CN"),
		ticketTTL: cfg.TicketTTL,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if c.ticketTTL <= 0 {
		c.ticketTTL = 7200 * time.Second
	}
	if cfg.Timeout <= 0 {
		c.http.Timeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AppID returns the configured app id.
func (c *Client) AppID() string { return c.appID }

// ExchangeCode trades an authorization code for a user access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (AccessToken, error) {
	if code == "" {
		return AccessToken{}, ErrEmptyCode
	}
	body, err := c.get(ctx, "exchange_code", "/sns/oauth2/access_token", url.Values{
		"appid":      {c.appID},
		"secret":     {c.appSecret},
		"code":       {code},
		"grant_type": {"authorization_code"},
	}, "access_token", "openid")
	if err != nil {
		return AccessToken{}, err
	}
	return decode[AccessToken]("exchange_code", body)
}

// RefreshToken renews a user access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (AccessToken, error) {
	body, err := c.get(ctx, "refresh_token", "/sns/oauth2/refresh_token", url.Values{
		"appid":         {c.appID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}, "access_token")
	if err != nil {
		return AccessToken{}, err
	}
	return decode[AccessToken]("refresh_token", body)
}

// ValidateToken reports whether a user access token is still accepted.
func (c *Client) ValidateToken(ctx context.Context, accessToken, openID string) (bool, error) {
	_, err := c.get(ctx, "validate_token", "/sns/auth", url.Values{
		"access_token": {accessToken},
		"openid":       {openID},
	})
	if err == nil {
		return true, nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code != 0 {
		return false, nil
	}
	return false, err
}

// UserInfo fetches the profile for openID. An empty lang uses the configured one.
func (c *Client) UserInfo(ctx context.Context, accessToken, openID, lang string) (UserInfo, error) {
	if lang == "" {
		lang = c.lang
	}
	body, err := c.get(ctx, "user_info", "/sns/userinfo", url.Values{
		"access_token": {accessToken},
		"openid":       {openID},
		"lang":         {lang},
	}, "openid")
	if err != nil {
		return UserInfo{}, err
	}
	info, err := decode[UserInfo]("user_info", body)
	if err != nil {
		return UserInfo{}, err
	}
	if err := json.Unmarshal(body, &info.Raw); err != nil {
		return UserInfo{}, &ProviderError{Op: "user_info", Message: "malformed response", Err: err}
	}
	return info, nil
}

// ClientToken fetches the app-level access token used by the JS-SDK.
func (c *Client) ClientToken(ctx context.Context) (Credential, error) {
	body, err := c.get(ctx, "client_token", "/cgi-bin/token", url.Values{
		"grant_type": {"client_credential"},
		"appid":      {c.appID},
		"secret":     {c.appSecret},
	}, "access_token")
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Value:     gjson.GetBytes(body, "access_token").String(),
		ExpiresIn: c.lifetime(gjson.GetBytes(body, "expires_in").Int()),
	}, nil
}

// JSAPITicket fetches the JS-SDK ticket for an app access token.
func (c *Client) JSAPITicket(ctx context.Context, accessToken string) (Credential, error) {
	body, err := c.get(ctx, "jsapi_ticket", "/cgi-bin/ticket/getticket", url.Values{
		"access_token": {accessToken},
		"type":         {"jsapi"},
	}, "ticket")
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Value:     gjson.GetBytes(body, "ticket").String(),
		ExpiresIn: c.lifetime(gjson.GetBytes(body, "expires_in").Int()),
	}, nil
}

func (c *Client) lifetime(seconds int64) time.Duration {
	if seconds <= 0 {
		return c.ticketTTL
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, required ...string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Op: op, Message: "build request", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{Op: op, Message: "read response", Err: err}
	}

	c.logger.DebugContext(ctx, "wechat api call",
		logger.Action(op),
		logger.StatusCode(resp.StatusCode),
		logger.Elapsed(start),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Op: op, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &ProviderError{Op: op, Message: "malformed response"}
	}
	if code := gjson.GetBytes(body, "errcode").Int(); code != 0 {
		return nil, &ProviderError{Op: op, Code: int(code), Message: gjson.GetBytes(body, "errmsg").String()}
	}
	for _, field := range required {
		if !gjson.GetBytes(body, field).Exists() {
			return nil, &ProviderError{Op: op, Message: fmt.Sprintf("response missing %q", field)}
		}
	}
	return body, nil
}

func decode[T any](op string, body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, &ProviderError{Op: op, Message: "malformed response", Err: err}
	}
	return v, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
