package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/response"
)

type testContext struct {
	w http.ResponseWriter
	r *http.Request
}

func (tc *testContext) Deadline() (time.Time, bool) { return tc.r.Context().Deadline() }
func (tc *testContext) Done() <-chan struct{} { return tc.r.Context().Done() }
func (tc *testContext) Err() error { return tc.r.Context().Err() }
func (tc *testContext) Value(key any) any { return tc.r.Context().Value(key) }
func (tc *testContext) SetValue(key, val any) {}
func (tc *testContext) Request() *http.Request { return tc.r }
func (tc *testContext) ResponseWriter() http.ResponseWriter { return tc.w }
func (tc *testContext) Param(key string) string { return "" }

type statusErr struct{ status int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.status) }
func (e statusErr) StatusCode() int { return e.status }

func TestString(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	err := response.String("hello")(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "hello", w.Body.String())
}

func TestImage(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	err := response.Image([]byte{0x89, 'P', 'N', 'G'}, "image/png", 60)(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, err)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.Equal(t, 4, w.Body.Len())
}

func TestJSONWithStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  any
		status int
		want   int
		body   string
	}{
		{name: "explicit_status", value: map[string]int{"a": 1}, status: http.StatusCreated, want: http.StatusCreated, body: "{\"a\":1}\n"},
		{name: "zero_status_with_value", value: []int{1}, want: http.StatusOK, body: "[1]\n"},
		{name: "zero_status_nil_value", value: nil, want: http.StatusNoContent, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			err := response.JSONWithStatus(tt.value, tt.status)(w, httptest.NewRequest(http.MethodGet, "/", nil))

			require.NoError(t, err)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		require.NoError(t, response.Redirect("https://example.com/x")(w, httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/x", w.Header().Get("Location"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	})

	t.Run("invalid_status_falls_back", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		require.NoError(t, response.RedirectWithStatus("/y", http.StatusOK)(w, httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusFound, w.Code)
	})
}

func TestAsHTTPError(t *testing.T) {
	t.Parallel()

	t.Run("http_error_passthrough", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("wrapped: %w", response.ErrUnauthorized)
		assert.Equal(t, http.StatusUnauthorized, response.AsHTTPError(err).Status)
	})

	t.Run("status_coder", func(t *testing.T) {
		t.Parallel()
		got := response.AsHTTPError(fmt.Errorf("upstream: %w", statusErr{status: http.StatusBadGateway}))
		assert.Equal(t, http.StatusBadGateway, got.Status)
		assert.Equal(t, "bad_gateway", got.Code)
		assert.Contains(t, got.Details["cause"], "status 502")
	})

	t.Run("plain_error", func(t *testing.T) {
		t.Parallel()
		got := response.AsHTTPError(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, got.Status)
		assert.Nil(t, response.ErrInternalServerError.Details)
	})
}

func TestJSONErrorHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	ctx := &testContext{w: w, r: httptest.NewRequest(http.MethodGet, "/", nil)}

	response.JSONErrorHandler(ctx, response.ErrServiceUnavailable.WithMessage("cache offline"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "service_unavailable", body["code"])
	assert.Equal(t, "cache offline", body["message"])
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	ctx := &testContext{w: w, r: httptest.NewRequest(http.MethodGet, "/", nil)}

	response.ErrorHandler(ctx, response.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", w.Body.String())
}

func TestBefore(t *testing.T) {
	t.Parallel()

	t.Run("runs_before_render", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		resp := response.Before(response.Redirect("/next"), func(w http.ResponseWriter) error {
			http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "t"})
			return nil
		})
		require.NoError(t, resp(w, httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusFound, w.Code)
		require.Len(t, w.Result().Cookies(), 1)
	})

	t.Run("error_aborts", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		w := httptest.NewRecorder()
		resp := response.Before(response.String("x"), func(http.ResponseWriter) error { return boom })
		assert.ErrorIs(t, resp(w, httptest.NewRequest(http.MethodGet, "/", nil)), boom)
		assert.Empty(t, w.Body.String())
	})
}

func TestWithCache(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	require.NoError(t, response.WithCache(response.String("x"), 0)(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	require.NoError(t, response.WithCache(response.String("x"), time.Minute)(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
}
