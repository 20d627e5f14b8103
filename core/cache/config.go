package cache

import "time"

// Config holds the environment-driven defaults for a Cache.
type Config struct {
	LockTimeout     time.Duration `env:"CACHE_LOCK_TIMEOUT" envDefault:"10s"`
	LockRetryDelay  time.Duration `env:"CACHE_LOCK_RETRY_DELAY" envDefault:"100ms"`
	LockMaxRetries  int           `env:"CACHE_LOCK_MAX_RETRIES" envDefault:"5"`
	LocalCoalescing bool          `env:"CACHE_LOCAL_COALESCING" envDefault:"true"`
}

// LockOptions tunes the compute lock taken on a miss. MaxRetries counts
// total attempts.
type LockOptions struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	MaxRetries int
}

// DefaultLockOptions mirrors the Config defaults.
func DefaultLockOptions() LockOptions {
	return LockOptions{Timeout: 10 * time.Second, RetryDelay: 100 * time.Millisecond, MaxRetries: 5}
}

// LockOption overrides LockOptions for a single call.
type LockOption func(*LockOptions)

// WithLockTimeout sets the lock TTL, which bounds how long one compute may
// hold the key.
func WithLockTimeout(d time.Duration) LockOption {
	return func(o *LockOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithRetryDelay sets the pause between lock attempts. Zero retries at once.
func WithRetryDelay(d time.Duration) LockOption {
	return func(o *LockOptions) {
		if d >= 0 {
			o.RetryDelay = d
		}
	}
}

// WithMaxRetries sets the total number of lock attempts.
func WithMaxRetries(n int) LockOption {
	return func(o *LockOptions) {
		if n > 0 {
			o.MaxRetries = n
		}
	}
}
