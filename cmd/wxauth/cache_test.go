package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/app"
	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/integration/database/redis"
)

func seedCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := app.NewCache(app.NewKV(rdb, redis.Config{}, logger.Discard()), cache.Config{}, logger.Discard())
	for _, input := range []string{"a", "b"} {
		require.NoError(t, cache.Put(context.Background(), c, cache.MustKey(app.FeatureQRCode, input), []byte(input), time.Hour))
	}
	require.NoError(t, cache.Put(context.Background(), c, cache.MustKey(app.FeatureWeChat, "x"), "v", time.Hour))

	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("REDIS_RETRY_ATTEMPTS", "1")
	t.Setenv("REDIS_KEY_PREFIX", "")
	return mr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCacheStats(t *testing.T) {
	seedCache(t)

	out, err := run(t, "cache", "stats")
	require.NoError(t, err)

	var stats []cache.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Len(t, stats, 3)
	assert.Equal(t, app.FeatureQRCode, stats[0].Feature)
	assert.Equal(t, 2, stats[0].Entries)
	assert.Equal(t, app.FeatureWeChat, stats[1].Feature)
	assert.Equal(t, 1, stats[1].Entries)
	assert.Equal(t, app.FeatureReceipt, stats[2].Feature)
	assert.Zero(t, stats[2].Entries)
}

func TestCachePurge(t *testing.T) {
	mr := seedCache(t)

	out, err := run(t, "cache", "purge", "--feature", app.FeatureQRCode)
	require.NoError(t, err)
	assert.Contains(t, out, "qrcode: purged 2 keys")

	assert.Len(t, mr.Keys(), 1, "other features are kept")
}

func TestCacheRejectsPatterns(t *testing.T) {
	seedCache(t)

	_, err := run(t, "cache", "purge", "--feature", "*")
	require.ErrorIs(t, err, errInvalidFeature)
}
