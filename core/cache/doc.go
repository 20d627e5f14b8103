// Package cache implements cache-aside reads over the kv store with
// cross-process single-flight.
//
// Entries live under keys of the form "{feature}:cache:{md5(json(input))}"
// built by Key, so equal inputs share one entry and every entry of a feature
// can be listed with Pattern.
//
// On a miss GetOrCompute takes a distributed lock named "{key}:lock", re-reads
// the key and only runs the compute function when the entry is still missing.
// Processes that lose the race poll the lock and then find the value written
// by the winner, so an expensive computation runs once per key across the
// fleet. Inside one process concurrent misses are also coalesced with
// singleflight before they reach the lock. Compute errors are returned and
// never cached.
//
// # Usage
//
//	import "github.com/dmitrymomot/wxauth/core/cache"
//
//	c := cache.New(kvClient, lock.New(kvClient))
//
//	key := cache.MustKey("qrcode", map[string]string{"login_url": url})
//	png, err := cache.GetOrCompute(ctx, c, key, 24*time.Hour, func(ctx context.Context) ([]byte, error) {
//		return qrcode.Generate(url, 256)
//	})
//
// Values whose lifetime is decided by the producer, like upstream access
// tokens, use GetOrComputeExpiring. Refresh recomputes under the lock even
// when an entry exists.
//
// IO binds a key, ttl and compute function so a component can hand around a
// single accessor:
//
//	token := cache.NewExpiringIO(c, key, 2*time.Hour, fetchToken)
//	v, err := token.Get(ctx)    // cached or computed
//	v, err = token.Update(ctx)  // forced recompute
//	err = token.Invalidate(ctx) // drop the entry
//
// # Lock tuning
//
// The compute lock defaults come from Config (CACHE_LOCK_TIMEOUT,
// CACHE_LOCK_RETRY_DELAY, CACHE_LOCK_MAX_RETRIES) and can be overridden per
// call with WithLockTimeout, WithRetryDelay and WithMaxRetries. When every
// attempt finds the lock held the call fails with ErrLockTimeout.
//
// # Observability
//
// Stats reports entry, lock and persistent key counts plus the oldest and
// newest write per feature. Purge deletes every entry of a feature.
// WithMetrics records hits, misses, lock timeouts and compute durations in
// Prometheus, labelled by feature.
package cache
