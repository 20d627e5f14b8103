package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wxauth/core/kv"
	"github.com/dmitrymomot/wxauth/core/lock"
)

func newStore(t *testing.T) (*kv.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return kv.New(rdb), mr
}

func TestTryAcquireIsExclusive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	l := lock.New(store)

	lease, ok, err := l.TryAcquire(ctx, "job:lock", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, lease.Token)
	assert.Equal(t, "job:lock", lease.Key)

	_, ok, err = l.TryAcquire(ctx, "job:lock", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, lease))

	_, ok, err = l.TryAcquire(ctx, "job:lock", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryAcquireInvalidTTL(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)

	_, _, err := lock.New(store).TryAcquire(context.Background(), "k", 0)
	assert.ErrorIs(t, err, lock.ErrInvalidTTL)
}

func TestLockExpiresWithTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newStore(t)
	l := lock.New(store)

	_, ok, err := l.TryAcquire(ctx, "k", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(3 * time.Second)

	_, ok, err = l.TryAcquire(ctx, "k", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireExhaustsAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	l := lock.New(store)

	_, ok, err := l.TryAcquire(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	_, err = l.Acquire(ctx, "busy", time.Minute, lock.RetryPolicy{Delay: 10 * time.Millisecond, MaxAttempts: 3})
	require.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestAcquireWaitsForRelease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	l := lock.New(store)

	held, ok, err := l.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = l.Unlock(ctx, held)
	}()

	lease, err := l.Acquire(ctx, "k", time.Minute, lock.RetryPolicy{Delay: 10 * time.Millisecond, MaxAttempts: 100})
	require.NoError(t, err)
	assert.NotEqual(t, held.Token, lease.Token)
}

func TestAcquireHonoursContext(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)
	l := lock.New(store)

	_, ok, err := l.TryAcquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "k", time.Minute, lock.RetryPolicy{Delay: time.Second, MaxAttempts: 10})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type brokenStore struct {
	calls atomic.Int32
}

var errStoreDown = errors.New("store down")

func (s *brokenStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	s.calls.Add(1)
	return false, errStoreDown
}

func (s *brokenStore) Delete(context.Context, string) (bool, error) { return false, errStoreDown }

func (s *brokenStore) DeleteIfValue(context.Context, string, any) (bool, error) {
	return false, errStoreDown
}

func TestAcquireDoesNotRetryStoreErrors(t *testing.T) {
	t.Parallel()
	store := &brokenStore{}

	_, err := lock.New(store).Acquire(context.Background(), "k", time.Minute, lock.RetryPolicy{Delay: time.Millisecond, MaxAttempts: 5})
	require.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, lock.ErrLockTimeout)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestAcquireInvalidPolicy(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)

	_, err := lock.New(store).Acquire(context.Background(), "k", time.Second, lock.RetryPolicy{})
	assert.ErrorIs(t, err, lock.ErrInvalidPolicy)
}

func TestUnlockDoesNotStealForeignLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newStore(t)
	l := lock.New(store)

	stale, ok, err := l.TryAcquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	current, ok, err := l.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unlock(ctx, stale))

	v, err := kv.Get[string](ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, current.Token, v)
}

func TestUnlockWithoutOwnershipCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, mr := newStore(t)
	l := lock.New(store, lock.WithOwnershipCheck(false))

	stale, ok, err := l.TryAcquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unlock(ctx, stale))
	assert.False(t, mr.Exists("k"))
}

func TestReleaseAbsentIsNoop(t *testing.T) {
	t.Parallel()
	store, _ := newStore(t)

	assert.NoError(t, lock.New(store).Release(context.Background(), "nothing"))
}

func TestMutualExclusion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)
	l := lock.New(store)

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := l.Acquire(ctx, "critical", time.Minute, lock.RetryPolicy{Delay: 5 * time.Millisecond, MaxAttempts: 1000})
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, l.Unlock(ctx, lease))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxSeen.Load())
}
