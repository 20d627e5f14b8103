package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/kv"
)

func newTestClient(t *testing.T, opts ...kv.Option) (*kv.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return kv.New(rdb, opts...), mr
}

type profile struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

func TestSetGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestClient(t)

	require.NoError(t, c.Set(ctx, "p", profile{Name: "ann", Admin: true}, time.Minute))

	got, err := kv.Get[profile](ctx, c, "p")
	require.NoError(t, err)
	assert.Equal(t, profile{Name: "ann", Admin: true}, got)
}

func TestGetMissVersusFalsyValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestClient(t)

	_, err := kv.Get[string](ctx, c, "absent")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, c.Set(ctx, "false", false, 0))
	require.NoError(t, c.Set(ctx, "zero", 0, 0))
	require.NoError(t, c.Set(ctx, "empty", "", 0))

	b, err := kv.Get[bool](ctx, c, "false")
	require.NoError(t, err)
	assert.False(t, b)

	n, err := kv.Get[int](ctx, c, "zero")
	require.NoError(t, err)
	assert.Zero(t, n)

	s, err := kv.Get[string](ctx, c, "empty")
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestGetDecodeFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestClient(t)

	require.NoError(t, mr.Set("broken", "{not json"))

	_, err := kv.Get[profile](ctx, c, "broken")
	assert.ErrorIs(t, err, kv.ErrSerialization)
	assert.ErrorIs(t, err, kv.ErrStoreFailure)
}

func TestSetExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestClient(t)

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Second))

	ttl, err := c.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, ttl)

	mr.FastForward(11 * time.Second)

	_, err = kv.Get[string](ctx, c, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestTTLSentinels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestClient(t)

	require.NoError(t, c.Set(ctx, "forever", 1, 0))
	ttl, err := c.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, kv.NoExpiry, ttl)

	_, err = c.TTL(ctx, "nothing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSetNX(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestClient(t)

	ok, err := c.SetNX(ctx, "lock", "a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := kv.Get[string](ctx, c, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestDeleteIfValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestClient(t)

	require.NoError(t, c.Set(ctx, "owner", "token-1", time.Minute))

	ok, err := c.DeleteIfValue(ctx, "owner", "token-2")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := c.Exists(ctx, "owner")
	require.NoError(t, err)
	assert.True(t, exists)

	ok, err = c.DeleteIfValue(ctx, "owner", "token-1")
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err = c.Exists(ctx, "owner")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestClient(t)

	require.NoError(t, c.Set(ctx, "k", 1, 0))

	removed, err := c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPrefixAndKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestClient(t, kv.WithPrefix("app:"), kv.WithScanBatchSize(2))

	require.NoError(t, c.MSet(ctx, map[string]any{
		"a:cache:1": 1,
		"a:cache:2": 2,
		"a:cache:3": 3,
		"b:cache:1": 4,
	}, time.Minute))

	assert.True(t, mr.Exists("app:a:cache:1"))

	keys, err := c.Keys(ctx, "a:cache:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:cache:1", "a:cache:2", "a:cache:3"}, keys)

	vals, err := c.MGet(ctx, "a:cache:1", "missing")
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, []byte("1"), vals[0])
	assert.Nil(t, vals[1])

	removed, err := c.Clean(ctx, "a:cache:*")
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	keys, err = c.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"b:cache:1"}, keys)
}

func TestEmptyKey(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	assert.ErrorIs(t, c.Set(context.Background(), "", 1, 0), kv.ErrEmptyKey)
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestClient(t)

	mr.Close()

	err := c.Set(ctx, "k", 1, 0)
	assert.ErrorIs(t, err, kv.ErrStoreFailure)
	assert.Error(t, c.Ping(ctx))
}
