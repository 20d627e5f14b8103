package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/kv"
	"github.com/dmitrymomot/wxauth/core/lock"
)

var fastLock = cache.LockOptions{Timeout: 5 * time.Second, RetryDelay: 10 * time.Millisecond, MaxRetries: 200}

func newStore(t *testing.T) (*kv.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return kv.New(rdb), mr
}

func newCache(store *kv.Client, opts ...cache.Option) *cache.Cache {
	opts = append([]cache.Option{cache.WithLockOptions(fastLock)}, opts...)
	return cache.New(store, lock.New(store), opts...)
}

type report struct {
	Title string `json:"title"`
	Pages int    `json:"pages"`
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newStore(t)
	c := newCache(store)

	var calls atomic.Int32
	compute := func(context.Context) (report, error) {
		calls.Add(1)
		return report{Title: "q3", Pages: 12}, nil
	}

	got, err := cache.GetOrCompute(ctx, c, "report:cache:q3", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, report{Title: "q3", Pages: 12}, got)

	got, err = cache.GetOrCompute(ctx, c, "report:cache:q3", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, report{Title: "q3", Pages: 12}, got)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, time.Minute, mr.TTL("report:cache:q3"))
	assert.False(t, mr.Exists("report:cache:q3:lock"))
}

func TestGetOrComputeCachesFalsyValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	c := newCache(store)

	var calls atomic.Int32
	compute := func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	}

	for range 3 {
		v, err := cache.GetOrCompute(ctx, c, "flag:cache:x", time.Minute, compute)
		require.NoError(t, err)
		assert.False(t, v)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetOrComputeCoalescesInProcess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	c := newCache(store)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrCompute(ctx, c, "answer:cache:1", time.Minute, compute)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestGetOrComputeSingleFlightAcrossProcesses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)

	// Separate Cache values without local coalescing behave like separate
	// processes sharing one store.
	nodes := make([]*cache.Cache, 5)
	for i := range nodes {
		nodes[i] = newCache(store, cache.WithLocalCoalescing(false))
	}

	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "expensive", nil
	}

	var wg sync.WaitGroup
	for _, node := range nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrCompute(ctx, node, "shot:cache:abc", time.Minute, compute)
			assert.NoError(t, err)
			assert.Equal(t, "expensive", v)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
}

func TestGetOrComputeErrorIsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newStore(t)
	c := newCache(store)

	boom := errors.New("upstream down")
	_, err := cache.GetOrCompute(ctx, c, "x:cache:1", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("x:cache:1"))
	assert.False(t, mr.Exists("x:cache:1:lock"))

	v, err := cache.GetOrCompute(ctx, c, "x:cache:1", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGetOrComputeLockTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	c := newCache(store, cache.WithLocalCoalescing(false))

	_, ok, err := lock.New(store).TryAcquire(ctx, "slow:cache:1:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	var calls atomic.Int32
	_, err = cache.GetOrCompute(ctx, c, "slow:cache:1", time.Minute, func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}, cache.WithMaxRetries(3), cache.WithRetryDelay(5*time.Millisecond))

	require.ErrorIs(t, err, cache.ErrLockTimeout)
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.Zero(t, calls.Load())
}

func TestGetOrComputeStoreUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newStore(t)
	c := newCache(store)

	mr.Close()

	var calls atomic.Int32
	_, err := cache.GetOrCompute(ctx, c, "x:cache:1", time.Minute, func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	})
	require.ErrorIs(t, err, kv.ErrStoreFailure)
	assert.Zero(t, calls.Load())
}

func TestGetOrComputeExpiringUsesComputedTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newStore(t)
	c := newCache(store)

	_, err := cache.GetOrComputeExpiring(ctx, c, "token:cache:1", time.Hour, func(context.Context) (string, time.Duration, error) {
		return "tok", 90 * time.Second, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, mr.TTL("token:cache:1"))

	_, err = cache.GetOrComputeExpiring(ctx, c, "token:cache:2", time.Hour, func(context.Context) (string, time.Duration, error) {
		return "tok", 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("token:cache:2"))
}

func TestGetOrComputeNilCompute(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)

	_, err := cache.GetOrCompute[int](context.Background(), newCache(store), "k", time.Minute, nil)
	assert.ErrorIs(t, err, cache.ErrNilCompute)
}

func TestIOGetAndUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	c := newCache(store)

	var n atomic.Int32
	io := cache.NewIO(c, "counter:cache:1", time.Minute, func(context.Context) (int32, error) {
		return n.Add(1), nil
	})

	v, err := io.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	v, err = io.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	v, err = io.Update(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	v, err = io.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	require.NoError(t, io.Invalidate(ctx))
	v, err = io.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestPeekAndPut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	c := newCache(store)

	_, ok, err := cache.Peek[string](ctx, c, "p:cache:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, c, "p:cache:1", "v", time.Minute))

	v, ok, err := cache.Peek[string](ctx, c, "p:cache:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCallerCancellationDoesNotAbortSharedCompute(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	c := newCache(store)

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "done", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cache.GetOrCompute(ctx, c, "c:cache:1", time.Minute, compute)
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool {
		v, ok, err := cache.Peek[string](context.Background(), c, "c:cache:1")
		return err == nil && ok && v == "done"
	}, time.Second, 10*time.Millisecond)
}

func TestStatsAndPurge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	c := newCache(store)

	for _, in := range []string{"a", "b"} {
		key := cache.MustKey("shot", in)
		_, err := cache.GetOrCompute(ctx, c, key, time.Minute, func(context.Context) (string, error) { return in, nil })
		require.NoError(t, err)
	}
	require.NoError(t, cache.Put(ctx, c, cache.MustKey("shot", "c"), "c", 0))
	require.NoError(t, store.Set(ctx, cache.MustKey("shot", "d")+":lock", "token", time.Minute))
	require.NoError(t, cache.Put(ctx, c, cache.MustKey("other", "a"), "a", time.Minute))

	st, err := c.Stats(ctx, "shot")
	require.NoError(t, err)
	assert.Equal(t, "shot", st.Feature)
	assert.Equal(t, 3, st.Entries)
	assert.Equal(t, 1, st.Locks)
	assert.Equal(t, 1, st.Persistent)
	assert.False(t, st.OldestWrite.IsZero())
	assert.False(t, st.NewestWrite.Before(st.OldestWrite))

	removed, err := c.Purge(ctx, "shot")
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	st, err = c.Stats(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Entries)
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)

	reg := prometheus.NewRegistry()
	m, err := cache.NewMetrics(reg, "wxauth")
	require.NoError(t, err)
	c := newCache(store, cache.WithMetrics(m))

	compute := func(context.Context) (int, error) { return 1, nil }
	for range 3 {
		_, err := cache.GetOrCompute(ctx, c, "m:cache:1", time.Minute, compute)
		require.NoError(t, err)
	}

	assert.InDelta(t, 2, counterValue(t, reg, "wxauth_cache_hits_total"), 0)
	assert.InDelta(t, 1, counterValue(t, reg, "wxauth_cache_misses_total"), 0)
	assert.InDelta(t, 1, counterValue(t, reg, "wxauth_cache_computations_total"), 0)

	_, err = cache.NewMetrics(reg, "wxauth")
	assert.Error(t, err)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestKey(t *testing.T) {
	t.Parallel()

	a, err := cache.Key("screenshot", map[string]any{"url": "https://x", "width": 800})
	require.NoError(t, err)
	b, err := cache.Key("screenshot", map[string]any{"width": 800, "url": "https://x"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^screenshot:cache:[0-9a-f]{32}$`, a)

	c, err := cache.Key("screenshot", map[string]any{"url": "https://y"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = cache.Key("", "x")
	assert.ErrorIs(t, err, cache.ErrInvalidKey)
	_, err = cache.Key("a:b", "x")
	assert.ErrorIs(t, err, cache.ErrInvalidKey)
	_, err = cache.Key("f", func() {})
	assert.ErrorIs(t, err, cache.ErrInvalidKey)

	assert.Equal(t, "screenshot", cache.Feature(a))
}
