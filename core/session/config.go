package session

import (
	"log/slog"
	"time"
)

// Config is the environment configuration for a Manager.
type Config struct {
	TTL               time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	TouchInterval     time.Duration `env:"SESSION_TOUCH_INTERVAL" envDefault:"5m"`
	SaveUninitialized bool          `env:"SESSION_SAVE_UNINITIALIZED" envDefault:"false"`
}

type options struct {
	ttl               time.Duration
	touchInterval     time.Duration
	saveUninitialized bool
	logger            *slog.Logger
}

func defaultOptions() options {
	return options{
		ttl:           7 * 24 * time.Hour,
		touchInterval: 5 * time.Minute,
	}
}

// Option is a functional option for configuring the session manager.
type Option func(*options)

// WithTTL sets the session time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithTouchInterval sets the minimum time between expiry extensions.
// Zero extends the session on every store.
func WithTouchInterval(interval time.Duration) Option {
	return func(o *options) {
		o.touchInterval = interval
	}
}

// WithSaveUninitialized makes the manager persist anonymous sessions.
// By default a session reaches the store only once it is authenticated.
func WithSaveUninitialized(enabled bool) Option {
	return func(o *options) {
		o.saveUninitialized = enabled
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
