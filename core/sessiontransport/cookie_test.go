package sessiontransport_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/cookie"
	"github.com/dmitrymomot/wxauth/core/kv"
	"github.com/dmitrymomot/wxauth/core/router"
	"github.com/dmitrymomot/wxauth/core/session"
	"github.com/dmitrymomot/wxauth/core/sessiontransport"
)

type profile struct {
	Nickname string `json:"nickname"`
}

func setup(t *testing.T) (*miniredis.Miniredis, *sessiontransport.Cookie[profile]) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mgr := session.NewManager[profile](session.NewKVStore[profile](kv.New(rdb)))
	cookies, err := cookie.New([]string{strings.Repeat("s", 32)})
	require.NoError(t, err)
	return mr, sessiontransport.NewCookie(mgr, cookies, "sid")
}

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestLoadWithoutCookie(t *testing.T) {
	t.Parallel()
	_, transport := setup(t)

	sess, err := transport.Load(router.NewContext(httptest.NewRecorder(), requestWith(nil)))
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, "192.0.2.1", sess.IP)
}

func TestStoreAndReload(t *testing.T) {
	t.Parallel()
	mr, transport := setup(t)

	w := httptest.NewRecorder()
	ctx := router.NewContext(w, requestWith(nil))
	sess, err := transport.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Authenticate("user-1", profile{Nickname: "wx"}))

	stored, err := transport.Store(ctx, sess)
	require.NoError(t, err)
	assert.True(t, mr.Exists("session:"+stored.Token))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Positive(t, cookies[0].MaxAge)

	reloaded, err := transport.Load(router.NewContext(httptest.NewRecorder(), requestWith(cookies)))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, reloaded.ID)
	assert.Equal(t, "user-1", reloaded.UserID)
	assert.Equal(t, "wx", reloaded.Data.Nickname)
}

func TestStoreAnonymousWritesNothing(t *testing.T) {
	t.Parallel()
	_, transport := setup(t)

	w := httptest.NewRecorder()
	ctx := router.NewContext(w, requestWith(nil))
	sess, err := transport.Load(ctx)
	require.NoError(t, err)

	_, err = transport.Store(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, w.Result().Cookies())
}

func TestLogoutClearsCookie(t *testing.T) {
	t.Parallel()
	mr, transport := setup(t)

	ctx := router.NewContext(httptest.NewRecorder(), requestWith(nil))
	sess, err := transport.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Authenticate("user-1"))
	sess, err = transport.Store(ctx, sess)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	sess.Logout()
	_, err = transport.Store(router.NewContext(w, requestWith(nil)), sess)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.False(t, mr.Exists("session:"+sess.Token))
}

func TestLoadIgnoresForgedCookie(t *testing.T) {
	t.Parallel()
	_, transport := setup(t)

	r := requestWith([]*http.Cookie{{Name: "sid", Value: "dG9rZW4|forged"}})
	sess, err := transport.Load(router.NewContext(httptest.NewRecorder(), r))
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated())
}

func TestLoadSurfacesStoreFailure(t *testing.T) {
	t.Parallel()
	mr, transport := setup(t)

	w := httptest.NewRecorder()
	ctx := router.NewContext(w, requestWith(nil))
	sess, err := transport.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Authenticate("user-1"))
	_, err = transport.Store(ctx, sess)
	require.NoError(t, err)

	mr.Close()
	_, err = transport.Load(router.NewContext(httptest.NewRecorder(), requestWith(w.Result().Cookies())))
	assert.ErrorIs(t, err, kv.ErrStoreFailure)
}
