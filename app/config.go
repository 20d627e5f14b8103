package app

import (
	"time"

	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/cookie"
	"github.com/dmitrymomot/wxauth/core/server"
	"github.com/dmitrymomot/wxauth/core/session"
	"github.com/dmitrymomot/wxauth/core/sessiontransport"
	"github.com/dmitrymomot/wxauth/integration/database/mongo"
	"github.com/dmitrymomot/wxauth/integration/database/redis"
	"github.com/dmitrymomot/wxauth/integration/wechat"
)

// Config aggregates every component's configuration.
type Config struct {
	Server        server.Config
	Redis         redis.Config
	Mongo         mongo.Config
	Cookie        cookie.Config
	Session       session.Config
	SessionCookie sessiontransport.CookieConfig
	WeChat        wechat.Config
	Cache         cache.Config
	Auth          AuthConfig

	AppName  string `env:"APP_NAME" envDefault:"wxauth"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig configures the authorization gate and the endpoints around it.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"wxauth"`

	// RouteDomainMap is "prefix=domain,..." in priority order.
	RouteDomainMap string `env:"ROUTE_DOMAIN_MAP"`
	// SilentRoutes use the snsapi_base scope.
	SilentRoutes []string `env:"SILENT_AUTH_ROUTES" envSeparator:","`
	// AllowedRedirectHosts are accepted as redirectUrl targets next to the
	// current host and the route domains.
	AllowedRedirectHosts []string `env:"ALLOWED_REDIRECT_HOSTS" envSeparator:","`
	State                string   `env:"WECHAT_STATE" envDefault:"STATE"`
	ErrorPage            string   `env:"AUTH_ERROR_PAGE" envDefault:"/error"`

	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	QRCodeSize int           `env:"QRCODE_SIZE" envDefault:"256"`
	QRCodeTTL  time.Duration `env:"QRCODE_CACHE_TTL" envDefault:"24h"`
	ReceiptTTL time.Duration `env:"RECEIPT_CACHE_TTL" envDefault:"24h"`

	// CacheAdminToken guards POST /api/cache/clear. The endpoint is not
	// served when it is empty.
	CacheAdminToken string `env:"CACHE_ADMIN_TOKEN"`

	// Login endpoints allow RateLimitCapacity requests per client IP, refilled
	// at RateLimitRefill per RateLimitInterval. A zero capacity disables it.
	RateLimitCapacity int           `env:"RATE_LIMIT_CAPACITY" envDefault:"30"`
	RateLimitRefill   int           `env:"RATE_LIMIT_REFILL" envDefault:"30"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"1m"`

	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`
	MetricsNamespace       string        `env:"METRICS_NAMESPACE" envDefault:"wxauth"`
}
