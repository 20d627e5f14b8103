package logger

import (
	"log/slog"
	"time"
)

// Helpers return an empty Attr for zero inputs where that makes sense, which
// slog drops, so callers never need nil checks.

// Group nests attrs under name.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error logs err under "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }

func Elapsed(start time.Time) slog.Attr { return slog.Duration("elapsed", time.Since(start)) }

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func Method(m string) slog.Attr { return slog.String("method", m) }

func Path(p string) slog.Attr { return slog.String("path", p) }

func StatusCode(code int) slog.Attr { return slog.Int("status", code) }

func ClientIP(ip string) slog.Attr { return slog.String("client_ip", ip) }

func UserAgent(ua string) slog.Attr { return slog.String("user_agent", ua) }

func BytesOut(n int64) slog.Attr { return slog.Int64("bytes_out", n) }

// Component names the subsystem emitting the record.
func Component(name string) slog.Attr { return slog.String("component", name) }

func Event(name string) slog.Attr { return slog.String("event", name) }

func Action(name string) slog.Attr { return slog.String("action", name) }

func Result(r string) slog.Attr { return slog.String("result", r) }

func RetryCount(n int) slog.Attr { return slog.Int("retry_count", n) }

// Key logs an arbitrary key/value pair.
func Key(key string, value any) slog.Attr { return slog.Any(key, value) }

// CacheKey logs a storage key.
func CacheKey(key string) slog.Attr { return slog.String("cache_key", key) }

// State logs an authorization state name.
func State(s string) slog.Attr { return slog.String("auth_state", s) }

// UserID logs the authenticated user.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}
