package cache

import (
	"context"
	"time"
)

// IO binds a key, ttl and compute function so callers can read through the
// cache or force a recompute without repeating them.
type IO[T any] struct {
	cache   *Cache
	key     string
	ttl     time.Duration
	compute ExpiringComputeFunc[T]
	opts    []LockOption
}

// NewIO returns an IO for key.
func NewIO[T any](c *Cache, key string, ttl time.Duration, compute ComputeFunc[T], opts ...LockOption) *IO[T] {
	return NewExpiringIO(c, key, ttl, func(ctx context.Context) (T, time.Duration, error) {
		v, err := compute(ctx)
		return v, 0, err
	}, opts...)
}

// NewExpiringIO returns an IO whose compute function decides the lifetime.
func NewExpiringIO[T any](c *Cache, key string, ttl time.Duration, compute ExpiringComputeFunc[T], opts ...LockOption) *IO[T] {
	return &IO[T]{cache: c, key: key, ttl: ttl, compute: compute, opts: opts}
}

// Key returns the bound key.
func (io *IO[T]) Key() string { return io.key }

// Get reads through the cache.
func (io *IO[T]) Get(ctx context.Context) (T, error) {
	return GetOrComputeExpiring(ctx, io.cache, io.key, io.ttl, io.compute, io.opts...)
}

// Update recomputes and overwrites the entry.
func (io *IO[T]) Update(ctx context.Context) (T, error) {
	return Refresh(ctx, io.cache, io.key, io.ttl, io.compute, io.opts...)
}

// Invalidate drops the entry.
func (io *IO[T]) Invalidate(ctx context.Context) error {
	_, err := io.cache.Invalidate(ctx, io.key)
	return err
}
