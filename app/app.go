// Package app wires the WeChat authorization service: redis and mongo
// storage, the cache, the provider client, sessions and the HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/wxauth/app/receipt"
	"github.com/dmitrymomot/wxauth/app/user"
	"github.com/dmitrymomot/wxauth/core/authflow"
	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/cookie"
	"github.com/dmitrymomot/wxauth/core/health"
	"github.com/dmitrymomot/wxauth/core/kv"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/lock"
	"github.com/dmitrymomot/wxauth/core/router"
	"github.com/dmitrymomot/wxauth/core/server"
	"github.com/dmitrymomot/wxauth/core/session"
	"github.com/dmitrymomot/wxauth/core/sessiontransport"
	"github.com/dmitrymomot/wxauth/integration/database/mongo"
	"github.com/dmitrymomot/wxauth/integration/database/redis"
	"github.com/dmitrymomot/wxauth/integration/wechat"
	"github.com/dmitrymomot/wxauth/pkg/domainrouter"
	"github.com/dmitrymomot/wxauth/pkg/jwt"
	"github.com/dmitrymomot/wxauth/pkg/ratelimiter"
)

// Cache features served by this app.
const (
	FeatureQRCode  = "qrcode"
	FeatureWeChat  = "wechat"
	FeatureReceipt = receipt.Feature
)

// Features lists the cache features reported by the stats endpoint.
var Features = []string{FeatureQRCode, FeatureWeChat, FeatureReceipt}

// App holds the wired service.
type App struct {
	cfg    Config
	logger *slog.Logger

	redis      goredis.UniversalClient
	registry   *prometheus.Registry
	httpClient *http.Client

	cache     *cache.Cache
	wechat    *wechat.Client
	jssdk     *wechat.JSSDK
	receipts  *receipt.Generator
	flow      *authflow.Flow
	users     user.Store
	cookies   *cookie.Manager
	sessions  *session.Manager[authflow.Identity]
	transport *sessiontransport.Cookie[authflow.Identity]
	tokens    *jwt.Service
	buckets   *ratelimiter.MemoryStore
	limiter   ratelimiter.Limiter
	router    *router.Router[*router.Context]
	server    *server.Server

	checks  []health.Check
	closers []func(context.Context) error
}

// Option configures an App.
type Option func(*App)

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRedis uses client instead of connecting with Config.Redis. The caller
// keeps ownership of client.
func WithRedis(client goredis.UniversalClient) Option {
	return func(a *App) { a.redis = client }
}

// WithUserStore uses store instead of the one selected by Config.Mongo.
func WithUserStore(store user.Store) Option {
	return func(a *App) { a.users = store }
}

// WithHTTPClient sets the client used to call the WeChat API.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) { a.httpClient = hc }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// New connects the backing stores and builds every component. Close
// releases what New opened, also when New fails halfway.
func New(ctx context.Context, cfg Config, opts ...Option) (a *App, err error) {
	a = &App{cfg: cfg, logger: logger.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
			a = nil
		}
	}()

	if a.redis == nil {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return a, err
		}
		a.redis = rdb
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	}
	a.checks = append(a.checks, health.Check{Name: "redis", Fn: redis.Healthcheck(a.redis)})

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics, err := cache.NewMetrics(a.registry, cfg.Auth.MetricsNamespace)
	if err != nil {
		return a, fmt.Errorf("register cache metrics: %w", err)
	}
	store := NewKV(a.redis, cfg.Redis, a.logger)
	a.cache = NewCache(store, cfg.Cache, a.logger, cache.WithMetrics(metrics))

	a.receipts = receipt.NewGenerator(a.cache, cfg.Auth.ReceiptTTL, a.logger)

	if err := a.openUsers(ctx); err != nil {
		return a, err
	}

	wechatOpts := []wechat.Option{wechat.WithLogger(a.logger)}
	if a.httpClient != nil {
		wechatOpts = append(wechatOpts, wechat.WithHTTPClient(a.httpClient))
	}
	if a.wechat, err = wechat.New(cfg.WeChat, wechatOpts...); err != nil {
		return a, err
	}
	a.jssdk = wechat.NewJSSDK(a.wechat, a.cache, wechat.WithJSSDKLogger(a.logger))

	routes, err := domainrouter.Parse(cfg.Auth.RouteDomainMap)
	if err != nil {
		return a, err
	}
	domains, err := domainrouter.New(routes...)
	if err != nil {
		return a, err
	}
	a.flow = authflow.New(
		wechat.NewGateway(a.wechat, cfg.WeChat.Lang),
		user.NewAccounts(a.users),
		authflow.WithDomainRouter(domains),
		authflow.WithSilentRoutes(cfg.Auth.SilentRoutes...),
		authflow.WithAllowedHosts(cfg.Auth.AllowedRedirectHosts...),
		authflow.WithState(cfg.Auth.State),
		authflow.WithLogger(a.logger),
	)

	if a.cookies, err = cookie.NewFromConfig(cfg.Cookie); err != nil {
		return a, err
	}
	a.sessions = session.NewManagerFromConfig[authflow.Identity](
		session.NewKVStore[authflow.Identity](store),
		cfg.Session,
		session.WithLogger(a.logger),
	)
	a.transport = sessiontransport.NewCookieFromConfig(cfg.SessionCookie, a.sessions, a.cookies,
		sessiontransport.WithLogger(a.logger),
	)
	if a.tokens, err = jwt.NewFromString(cfg.Auth.JWTSecret,
		jwt.WithTTL(cfg.Auth.JWTTTL),
		jwt.WithIssuer(cfg.Auth.JWTIssuer),
	); err != nil {
		return a, err
	}

	if cfg.Auth.RateLimitCapacity > 0 {
		a.buckets = ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreLogger(a.logger))
		if a.limiter, err = ratelimiter.NewBucket(a.buckets, ratelimiter.Config{
			Capacity:       cfg.Auth.RateLimitCapacity,
			RefillRate:     cfg.Auth.RateLimitRefill,
			RefillInterval: cfg.Auth.RateLimitInterval,
		}); err != nil {
			return a, err
		}
	}

	if a.server, err = server.NewFromConfig(cfg.Server, server.WithLogger(a.logger)); err != nil {
		return a, err
	}
	a.router = a.routes()
	return a, nil
}

func (a *App) openUsers(ctx context.Context) error {
	if a.users != nil {
		return nil
	}
	if a.cfg.Mongo.ConnectionURL == "" {
		a.logger.WarnContext(ctx, "MONGODB_URL is not set, keeping users in memory")
		a.users = user.NewMemoryStore()
		return nil
	}

	client, err := mongo.New(ctx, a.cfg.Mongo)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Disconnect)
	a.checks = append(a.checks, health.Check{Name: "mongo", Fn: mongo.Healthcheck(client)})

	users := user.NewMongoStore(client.Database(a.cfg.Mongo.Database), user.WithLogger(a.logger))
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	a.users = users
	return nil
}

// NewKV builds the kv client with the configured key prefix.
func NewKV(rdb goredis.UniversalClient, cfg redis.Config, log *slog.Logger) *kv.Client {
	opts := []kv.Option{kv.WithPrefix(cfg.KeyPrefix), kv.WithLogger(log)}
	if cfg.ScanBatchSize > 0 {
		opts = append(opts, kv.WithScanBatchSize(cfg.ScanBatchSize))
	}
	return kv.New(rdb, opts...)
}

// NewCache builds the cache-aside layer and its lock over store.
func NewCache(store *kv.Client, cfg cache.Config, log *slog.Logger, opts ...cache.Option) *cache.Cache {
	locker := lock.New(store, lock.WithLogger(log))
	return cache.NewFromConfig(store, locker, cfg, append([]cache.Option{cache.WithLogger(log)}, opts...)...)
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.router }

// Cache returns the cache-aside layer.
func (a *App) Cache() *cache.Cache { return a.cache }

// Run serves HTTP, sweeps expired sessions and idle rate limit buckets
// until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	var workers []server.Worker
	if every := a.cfg.Auth.SessionCleanupInterval; every > 0 {
		workers = append(workers, server.Every(every, a.logger, "session-cleanup", func(ctx context.Context) error {
			_, err := a.sessions.CleanupExpired(ctx)
			return err
		}))
	}
	if a.buckets != nil {
		workers = append(workers, server.Every(ratelimiter.DefaultStaleAfter, a.logger, "ratelimit-cleanup", func(ctx context.Context) error {
			a.buckets.RemoveStale(ctx)
			return nil
		}))
	}
	return server.Run(ctx, a.server, a.router, workers...)
}

// Close releases connections opened by New in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
