// Package ratelimiter implements a token bucket limiter.
//
// A Bucket holds Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each Allow consumes one token; a request is allowed while
// the bucket still has one to give. Bucket state lives in a Store; the
// bundled MemoryStore keeps it per process:
//
//	store := ratelimiter.NewMemoryStore()
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       30,
//		RefillRate:     30,
//		RefillInterval: time.Minute,
//	})
//
//	res, err := limiter.Allow(ctx, clientIP)
//	if err == nil && !res.Allowed() {
//		// reject, retry after res.RetryAfter()
//	}
//
// MemoryStore never forgets a key on its own. Call RemoveStale
// periodically to drop buckets nobody touched recently.
package ratelimiter
