package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/wxauth/core/kv"
)

// entry is the stored envelope around a cached value.
type entry[T any] struct {
	Value      T         `json:"value"`
	WrittenAt  time.Time `json:"written_at"`
	TTLSeconds int64     `json:"ttl_seconds,omitempty"`
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var e entry[T]
	err := c.store.Get(ctx, key, &e)
	switch {
	case err == nil:
		return e.Value, true, nil
	case errors.Is(err, kv.ErrNotFound):
		var zero T
		return zero, false, nil
	default:
		var zero T
		return zero, false, fmt.Errorf("cache: read %q: %w", key, err)
	}
}

func write[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	e := entry[T]{Value: value, WrittenAt: time.Now().UTC()}
	if ttl > 0 {
		e.TTLSeconds = int64(ttl / time.Second)
	}
	if err := c.store.Set(ctx, key, e, ttl); err != nil {
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	return nil
}
