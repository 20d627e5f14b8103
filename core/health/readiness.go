package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/response"
)

// DefaultTimeout bounds all readiness checks of one probe.
const DefaultTimeout = 3 * time.Second

// Check is a named dependency probe.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

// Report is the readiness response body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Readiness runs checks in order and reports each one. Any failure turns the
// probe into a 503.
func Readiness[C handler.Context](log *slog.Logger, checks ...Check) handler.HandlerFunc[C] {
	return ReadinessWithTimeout[C](log, DefaultTimeout, checks...)
}

func ReadinessWithTimeout[C handler.Context](log *slog.Logger, timeout time.Duration, checks ...Check) handler.HandlerFunc[C] {
	return func(ctx C) handler.Response {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		report := Report{Status: "READY", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Fn(checkCtx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Component(c.Name), logger.Error(err))
				report.Checks[c.Name] = "DOWN"
				report.Status = "NOT_READY"
				status = http.StatusServiceUnavailable
				continue
			}
			report.Checks[c.Name] = "UP"
		}
		return response.WithCache(response.JSONWithStatus(report, status), 0)
	}
}
