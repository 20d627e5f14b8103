package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/wxauth/core/lock"
	"github.com/dmitrymomot/wxauth/core/logger"
)

// ComputeFunc produces the value for a missing key.
type ComputeFunc[T any] func(ctx context.Context) (T, error)

// ExpiringComputeFunc produces a value together with its lifetime. A
// non-positive lifetime falls back to the ttl passed by the caller.
type ExpiringComputeFunc[T any] func(ctx context.Context) (T, time.Duration, error)

// GetOrCompute returns the cached value under key, computing and storing it
// with ttl on a miss. Compute runs at most once per key at a time across all
// processes sharing the store. A compute error is returned to the caller and
// nothing is cached.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute ComputeFunc[T], opts ...LockOption) (T, error) {
	if compute == nil {
		var zero T
		return zero, ErrNilCompute
	}
	return GetOrComputeExpiring(ctx, c, key, ttl, func(ctx context.Context) (T, time.Duration, error) {
		v, err := compute(ctx)
		return v, 0, err
	}, opts...)
}

// GetOrComputeExpiring is GetOrCompute for values whose lifetime is only
// known after computing them, such as upstream access tokens.
func GetOrComputeExpiring[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute ExpiringComputeFunc[T], opts ...LockOption) (T, error) {
	if compute == nil {
		var zero T
		return zero, ErrNilCompute
	}

	v, ok, err := lookup[T](ctx, c, key)
	if err != nil {
		return v, err
	}
	if ok {
		c.metrics.hit(key)
		return v, nil
	}
	c.metrics.miss(key)

	return run(ctx, c, key, "get", func(ctx context.Context) (T, error) {
		return computeLocked(ctx, c, key, ttl, compute, false, c.lockOptions(opts))
	})
}

// Refresh recomputes key under the lock and overwrites the stored entry,
// regardless of whether one exists.
func Refresh[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute ExpiringComputeFunc[T], opts ...LockOption) (T, error) {
	if compute == nil {
		var zero T
		return zero, ErrNilCompute
	}
	return run(ctx, c, key, "refresh", func(ctx context.Context) (T, error) {
		return computeLocked(ctx, c, key, ttl, compute, true, c.lockOptions(opts))
	})
}

// Peek reads key without computing. ok is false on a miss.
func Peek[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	return lookup[T](ctx, c, key)
}

// Put stores value under key without taking the lock.
func Put[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	return write(ctx, c, key, value, ttl)
}

// run coalesces concurrent calls for the same key inside this process. The
// shared call is detached from any single caller's cancellation; each caller
// still stops waiting when its own ctx ends.
func run[T any](ctx context.Context, c *Cache, key, mode string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !c.coalesce {
		return fn(ctx)
	}

	ch := c.group.DoChan(mode+"\x00"+key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("%w: %T for %q", ErrTypeMismatch, res.Val, key)
		}
		return v, nil
	}
}

func computeLocked[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute ExpiringComputeFunc[T], force bool, lo LockOptions) (T, error) {
	var zero T

	lease, err := c.locker.Acquire(ctx, lockKey(key), lo.Timeout, lock.RetryPolicy{
		Delay:       lo.RetryDelay,
		MaxAttempts: lo.MaxRetries,
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			c.metrics.lockTimeout(key)
		}
		return zero, fmt.Errorf("cache: %w", err)
	}
	defer func() {
		if err := c.locker.Unlock(context.WithoutCancel(ctx), lease); err != nil {
			c.logger.ErrorContext(ctx, "failed to release cache lock",
				logger.CacheKey(key),
				logger.Error(err),
			)
		}
	}()

	if !force {
		// Another holder may have filled the key while we waited.
		v, ok, err := lookup[T](ctx, c, key)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
	}

	start := time.Now()
	v, valueTTL, err := compute(ctx)
	c.metrics.computed(key, time.Since(start), err)
	if err != nil {
		c.logger.WarnContext(ctx, "cache compute failed",
			logger.CacheKey(key),
			logger.Error(err),
		)
		return zero, err
	}
	if valueTTL <= 0 {
		valueTTL = ttl
	}
	if err := write(ctx, c, key, v, valueTTL); err != nil {
		return zero, err
	}

	c.logger.DebugContext(ctx, "cache entry computed",
		logger.CacheKey(key),
		logger.Elapsed(start),
		logger.Key("forced", force),
	)
	return v, nil
}
