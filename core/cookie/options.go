package cookie

import "net/http"

// Options are the attributes written with a cookie.
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

// Option adjusts Options for one call or for the Manager defaults.
type Option func(*Options)

func WithPath(path string) Option { return func(o *Options) { o.Path = path } }

func WithDomain(domain string) Option { return func(o *Options) { o.Domain = domain } }

// WithMaxAge sets max-age in seconds; zero makes a session cookie.
func WithMaxAge(seconds int) Option { return func(o *Options) { o.MaxAge = seconds } }

func WithSecure(secure bool) Option { return func(o *Options) { o.Secure = secure } }

func WithHTTPOnly(httpOnly bool) Option { return func(o *Options) { o.HttpOnly = httpOnly } }

func WithSameSite(sameSite http.SameSite) Option { return func(o *Options) { o.SameSite = sameSite } }

func (o Options) with(opts []Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
