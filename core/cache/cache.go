package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/wxauth/core/lock"
)

const lockSuffix = ":lock"

// Store is the subset of kv.Client the cache needs.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Cache coordinates reads, locked computation and writes.
type Cache struct {
	store    Store
	locker   *lock.Locker
	group    singleflight.Group
	coalesce bool
	lockOpts LockOptions
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLocalCoalescing toggles in-process singleflight. Enabled by default.
func WithLocalCoalescing(enabled bool) Option {
	return func(c *Cache) { c.coalesce = enabled }
}

// WithLockOptions sets the default lock settings for misses.
func WithLockOptions(o LockOptions) Option {
	return func(c *Cache) { c.lockOpts = o }
}

// WithMetrics records hits, misses and computations.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Cache that stores entries in store and serialises
// computation with locker.
func New(store Store, locker *lock.Locker, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		locker:   locker,
		coalesce: true,
		lockOpts: DefaultLockOptions(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig applies cfg on top of opts.
func NewFromConfig(store Store, locker *lock.Locker, cfg Config, opts ...Option) *Cache {
	base := []Option{
		WithLocalCoalescing(cfg.LocalCoalescing),
		WithLockOptions(LockOptions{
			Timeout:    cfg.LockTimeout,
			RetryDelay: cfg.LockRetryDelay,
			MaxRetries: cfg.LockMaxRetries,
		}),
	}
	return New(store, locker, append(base, opts...)...)
}

// Invalidate removes the entry under key and reports whether it existed.
func (c *Cache) Invalidate(ctx context.Context, key string) (bool, error) {
	ok, err := c.store.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache: invalidate %q: %w", key, err)
	}
	return ok, nil
}

func (c *Cache) lockOptions(opts []LockOption) LockOptions {
	o := c.lockOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func lockKey(key string) string { return key + lockSuffix }
