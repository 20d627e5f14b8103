package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/health"
	"github.com/dmitrymomot/wxauth/core/router"
)

func serve(r *router.Router[*router.Context], path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	t.Parallel()
	r := router.NewDefault()
	r.Get("/live", health.Liveness[*router.Context])

	w := serve(r, "/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ALIVE", w.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []health.Check
		status int
		want   health.Report
	}{
		{
			name:   "all up",
			checks: []health.Check{{Name: "redis", Fn: up}, {Name: "mongo", Fn: up}},
			status: http.StatusOK,
			want:   health.Report{Status: "READY", Checks: map[string]string{"redis": "UP", "mongo": "UP"}},
		},
		{
			name:   "one down",
			checks: []health.Check{{Name: "redis", Fn: up}, {Name: "mongo", Fn: down}},
			status: http.StatusServiceUnavailable,
			want:   health.Report{Status: "NOT_READY", Checks: map[string]string{"redis": "UP", "mongo": "DOWN"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := router.NewDefault()
			r.Get("/ready", health.Readiness[*router.Context](log, tt.checks...))

			w := serve(r, "/ready")
			assert.Equal(t, tt.status, w.Code)

			var got health.Report
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
