package wechat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/kv"
	"github.com/dmitrymomot/wxauth/core/lock"
	"github.com/dmitrymomot/wxauth/integration/wechat"
)

type fakeAPI struct {
	*httptest.Server
	tokenCalls    atomic.Int32
	ticketCalls   atomic.Int32
	userInfoCalls atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("/sns/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("appid") != "wx-app" || q.Get("secret") != "s3cret" || q.Get("grant_type") != "authorization_code" {
			writeJSON(w, map[string]any{"errcode": 40013, "errmsg": "invalid appid"})
			return
		}
		switch q.Get("code") {
		case "ABC":
			writeJSON(w, map[string]any{
				"access_token": "user-token", "expires_in": 7200, "refresh_token": "refresh",
				"openid": "o-123", "scope": "snsapi_userinfo",
			})
		case "BASE":
			writeJSON(w, map[string]any{
				"access_token": "base-token", "expires_in": 7200, "openid": "o-456", "scope": "snsapi_base",
			})
		case "missing-openid":
			writeJSON(w, map[string]any{"access_token": "user-token"})
		default:
			writeJSON(w, map[string]any{"errcode": 40029, "errmsg": "invalid code"})
		}
	})
	mux.HandleFunc("/sns/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.userInfoCalls.Add(1)
		q := r.URL.Query()
		if q.Get("access_token") != "user-token" {
			writeJSON(w, map[string]any{"errcode": 40001, "errmsg": "invalid credential"})
			return
		}
		writeJSON(w, map[string]any{
			"openid": q.Get("openid"), "nickname": "Ann", "sex": 2, "city": "Hangzhou",
			"headimgurl": "https://img.example.com/a.png", "privilege": []string{}, "lang": q.Get("lang"),
		})
	})
	mux.HandleFunc("/sns/oauth2/refresh_token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "user-token-2", "expires_in": 7200, "openid": "o-123", "refresh_token": r.URL.Query().Get("refresh_token")})
	})
	mux.HandleFunc("/sns/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") == "user-token" {
			writeJSON(w, map[string]any{"errcode": 0, "errmsg": "ok"})
			return
		}
		writeJSON(w, map[string]any{"errcode": 40003, "errmsg": "invalid openid"})
	})
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		writeJSON(w, map[string]any{"access_token": "app-token", "expires_in": 7200})
	})
	mux.HandleFunc("/cgi-bin/ticket/getticket", func(w http.ResponseWriter, r *http.Request) {
		f.ticketCalls.Add(1)
		if r.URL.Query().Get("access_token") != "app-token" || r.URL.Query().Get("type") != "jsapi" {
			writeJSON(w, map[string]any{"errcode": 40001, "errmsg": "bad token"})
			return
		}
		writeJSON(w, map[string]any{"errcode": 0, "errmsg": "ok", "ticket": "T", "expires_in": 3600})
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, api *fakeAPI) *wechat.Client {
	t.Helper()
	c, err := wechat.New(wechat.Config{
		AppID:       "wx-app",
		AppSecret:   "s3cret",
		APIBaseURL:  api.URL,
		OpenBaseURL: "https://open.weixin.qq.com",
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := wechat.New(wechat.Config{AppID: "x"})
	assert.ErrorIs(t, err, wechat.ErrMissingCredentials)
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(t, api)
	ctx := context.Background()

	tok, err := c.ExchangeCode(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, "user-token", tok.AccessToken)
	assert.Equal(t, "o-123", tok.OpenID)
	assert.Equal(t, wechat.ScopeUserInfo, tok.Scope)

	_, err = c.ExchangeCode(ctx, "")
	assert.ErrorIs(t, err, wechat.ErrEmptyCode)
}

func TestExchangeCodeProviderErrors(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(t, api)

	_, err := c.ExchangeCode(context.Background(), "expired")
	require.ErrorIs(t, err, wechat.ErrProvider)

	var pe *wechat.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 40029, pe.Code)
	assert.Equal(t, "invalid code", pe.Message)
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode())

	_, err = c.ExchangeCode(context.Background(), "missing-openid")
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "openid")
}

func TestTransportFailure(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(t, api)
	api.Close()

	_, err := c.ExchangeCode(context.Background(), "ABC")
	var pe *wechat.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, pe.Code)
	assert.Error(t, pe.Unwrap())
}

func TestUserInfo(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(t, api)

	info, err := c.UserInfo(context.Background(), "user-token", "o-123", "")
	require.NoError(t, err)
	assert.Equal(t, "o-123", info.OpenID)
	assert.Equal(t, "Ann", info.Nickname)
	assert.Equal(t, 2, info.Sex)
	assert.Equal(t, "zh_CN", info.Raw["lang"])

	_, err = c.UserInfo(context.Background(), "stale", "o-123", "en")
	assert.ErrorIs(t, err, wechat.ErrProvider)
}

func TestRefreshAndValidate(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(t, api)
	ctx := context.Background()

	tok, err := c.RefreshToken(ctx, "refresh")
	require.NoError(t, err)
	assert.Equal(t, "user-token-2", tok.AccessToken)

	ok, err := c.ValidateToken(ctx, "user-token", "o-123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateToken(ctx, "other", "o-123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientTokenAndTicket(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(t, api)
	ctx := context.Background()

	tok, err := c.ClientToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok.Value)
	assert.Equal(t, 7200*time.Second, tok.ExpiresIn)

	ticket, err := c.JSAPITicket(ctx, tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "T", ticket.Value)
	assert.Equal(t, time.Hour, ticket.ExpiresIn)
}

func TestAuthorizeURL(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(t, api)

	raw := c.AuthorizeURL("https://www.example.com/user/1?code=old&state=x&foo=bar", wechat.ScopeBase, "")
	assert.Equal(t,
		"https://open.weixin.qq.com/connect/oauth2/authorize?appid=wx-app"+
			"&redirect_uri=https%3A%2F%2Fwww.example.com%2Fuser%2F1%3Ffoo%3Dbar"+
			"&response_type=code&scope=snsapi_base&state=STATE#wechat_redirect",
		raw,
	)

	u, err := url.Parse(c.QRConnectURL("https://www.example.com/cb", "xyz"))
	require.NoError(t, err)
	assert.Equal(t, "/connect/qrconnect", u.Path)
	assert.Equal(t, "snsapi_login", u.Query().Get("scope"))
	assert.Equal(t, "xyz", u.Query().Get("state"))
	assert.Equal(t, "wechat_redirect", u.Fragment)
}

func TestSign(t *testing.T) {
	t.Parallel()

	// Reference values from the JS-SDK documentation.
	got := wechat.Sign(
		"sM4AOVdWfPE4DxkXGEs8VMCPGGVi4C3VM0P37wVUCFvkVAy_90u5h9nbSlYy3-Sl-HhTdfl2fzFy1AOcHKP7qg",
		"Wm3WZYTPz0wzccnW",
		1414587457,
		"http://mp.weixin.qq.com?params=value",
	)
	assert.Equal(t, "0f9de62fce790f9a083d5c99e95740ceb90c27ed", got)

	assert.Len(t, wechat.Sign("T", "n", 1700000000, "https://x/y"), 40)
}

func TestJSSDKConfigSharesCredentials(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	client := newClient(t, api)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := kv.New(rdb)
	c := cache.New(store, lock.New(store))

	now := time.Unix(1700000000, 0)
	sdk := wechat.NewJSSDK(client, c,
		wechat.WithClock(func() time.Time { return now }),
		wechat.WithNonce(func() string { return "nonce" }),
	)
	ctx := context.Background()

	cfg, err := sdk.Config(ctx, "https://www.example.com/activity/1?a=1#share")
	require.NoError(t, err)
	assert.Equal(t, "wx-app", cfg.AppID)
	assert.EqualValues(t, 1700000000, cfg.Timestamp)
	assert.Equal(t, "https://www.example.com/activity/1?a=1", cfg.URL)
	assert.Equal(t, wechat.Sign("T", "nonce", 1700000000, "https://www.example.com/activity/1?a=1"), cfg.Signature)

	_, err = sdk.Config(ctx, "https://www.example.com/other")
	require.NoError(t, err)

	// A second instance sharing the store reuses the cached ticket.
	other := wechat.NewJSSDK(client, c)
	_, err = other.Config(ctx, "https://www.example.com/third")
	require.NoError(t, err)

	assert.EqualValues(t, 1, api.tokenCalls.Load())
	assert.EqualValues(t, 1, api.ticketCalls.Load())

	key := cache.MustKey("wechat", map[string]string{"appid": "wx-app", "kind": "jsapi"})
	assert.Equal(t, time.Hour, mr.TTL(key))

	require.NoError(t, sdk.Refresh(ctx))
	assert.EqualValues(t, 2, api.ticketCalls.Load())

	_, err = sdk.Config(ctx, "#only-fragment")
	assert.ErrorIs(t, err, wechat.ErrEmptyPageURL)
}
