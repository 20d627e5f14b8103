// Package health serves liveness and readiness probes.
//
// Liveness never touches dependencies. Readiness runs every named check with
// a shared timeout and answers 503 with a per-check report when any fails:
//
//	r.Get("/health/live", health.Liveness[*router.Context])
//	r.Get("/health/ready", health.Readiness[*router.Context](log,
//		health.Check{Name: "redis", Fn: redis.Healthcheck(rdb)},
//		health.Check{Name: "mongo", Fn: mongo.Healthcheck(client)},
//	))
package health
