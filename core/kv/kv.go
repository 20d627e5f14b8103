// Package kv is a typed client for a Redis-compatible key/value store.
//
// Values are JSON-encoded on write and decoded on read. A missing key is
// reported as ErrNotFound so that stored zero values stay distinguishable
// from misses. Every key is optionally namespaced with a prefix, which is
// added on the way in and stripped from Keys results on the way out.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/wxauth/core/logger"
)

// NoExpiry is returned by TTL for keys without an expiration.
const NoExpiry time.Duration = -1

// compare-and-delete; values are compared in their encoded form.
var deleteIfValueScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client wraps a redis.UniversalClient.
type Client struct {
	rdb       redis.UniversalClient
	prefix    string
	scanBatch int64
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPrefix namespaces every key with prefix.
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

// WithScanBatchSize sets the SCAN COUNT hint used by Keys and Clean.
func WithScanBatchSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.scanBatch = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New wraps rdb. The caller owns rdb and closes it.
func New(rdb redis.UniversalClient, opts ...Option) *Client {
	c := &Client{
		rdb:       rdb,
		scanBatch: 1000,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Redis exposes the underlying client for health checks.
func (c *Client) Redis() redis.UniversalClient { return c.rdb }

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStoreFailure, err)
	}
	return nil
}

// Set stores value under key. A non-positive ttl stores without expiry.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := c.encode(key, value)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(key), data, ttlArg(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %w", ErrStoreFailure, key, err)
	}
	return nil
}

// SetNX stores value only when key does not exist and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	data, err := c.encode(key, value)
	if err != nil {
		return false, err
	}
	ok, err := c.rdb.SetNX(ctx, c.key(key), data, ttlArg(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx %q: %w", ErrStoreFailure, key, err)
	}
	return ok, nil
}

// Get decodes the value under key into dest.
func (c *Client) Get(ctx context.Context, key string, dest any) error {
	data, err := c.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: decode %q: %w", ErrSerialization, key, err)
	}
	return nil
}

// Get is the generic form of Client.Get.
func Get[T any](ctx context.Context, c *Client, key string) (T, error) {
	var v T
	err := c.Get(ctx, key, &v)
	return v, err
}

// GetRaw returns the encoded bytes under key.
func (c *Client) GetRaw(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %w", ErrStoreFailure, key, err)
	}
	return data, nil
}

// MGet returns the encoded values for keys. Missing keys map to nil.
func (c *Client) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: mget: %w", ErrStoreFailure, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

// MSet writes all entries with the same ttl in one pipeline.
func (c *Client) MSet(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range entries {
			data, err := c.encode(k, v)
			if err != nil {
				return err
			}
			p.Set(ctx, c.key(k), data, ttlArg(ttl))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSerialization) {
			return err
		}
		return fmt.Errorf("%w: mset: %w", ErrStoreFailure, err)
	}
	return nil
}

// Delete removes key and reports whether it existed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Del(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: del %q: %w", ErrStoreFailure, key, err)
	}
	return n > 0, nil
}

// DeleteMany removes keys and returns how many existed.
func (c *Client) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	n, err := c.rdb.Del(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: del: %w", ErrStoreFailure, err)
	}
	return n, nil
}

// DeleteIfValue removes key only while it still holds value. The check and
// the delete run atomically on the server.
func (c *Client) DeleteIfValue(ctx context.Context, key string, value any) (bool, error) {
	data, err := c.encode(key, value)
	if err != nil {
		return false, err
	}
	n, err := deleteIfValueScript.Run(ctx, c.rdb, []string{c.key(key)}, data).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: compare-and-delete %q: %w", ErrStoreFailure, key, err)
	}
	return n > 0, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %w", ErrStoreFailure, key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of key, NoExpiry for persistent keys,
// or ErrNotFound.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.TTL(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: ttl %q: %w", ErrStoreFailure, key, err)
	}
	// go-redis passes the -1/-2 sentinels through unscaled.
	switch d {
	case -2:
		return 0, ErrNotFound
	case -1:
		return NoExpiry, nil
	}
	return d, nil
}

// Expire resets the lifetime of key and reports whether it exists.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.Expire(ctx, c.key(key), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: expire %q: %w", ErrStoreFailure, key, err)
	}
	return ok, nil
}

// Keys lists keys matching a glob pattern using SCAN. Returned keys have the
// client prefix removed.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, c.key(pattern), c.scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), c.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %q: %w", ErrStoreFailure, pattern, err)
	}
	return keys, nil
}

// Clean deletes every key matching pattern and returns the count removed.
func (c *Client) Clean(ctx context.Context, pattern string) (int64, error) {
	keys, err := c.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	var removed int64
	for start := 0; start < len(keys); start += int(c.scanBatch) {
		end := min(start+int(c.scanBatch), len(keys))
		n, err := c.DeleteMany(ctx, keys[start:end]...)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	c.logger.DebugContext(ctx, "keys cleaned",
		logger.Key("pattern", pattern),
		logger.Key("removed", removed),
	)
	return removed, nil
}

func (c *Client) key(k string) string { return c.prefix + k }

func (c *Client) encode(key string, value any) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %q: %w", ErrSerialization, key, err)
	}
	return data, nil
}

func ttlArg(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
