// Package authflow drives the WeChat web authorization round trip.
//
// Classify maps a request to a State without side effects. Flow.Step runs the
// side effects for that state: building the provider redirect, or exchanging
// the callback code for an identity and returning the authenticated session.
// The session is passed in and handed back as a value; persisting it and
// writing cookies is the caller's job.
package authflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/session"
	"github.com/dmitrymomot/wxauth/pkg/domainrouter"
	"github.com/dmitrymomot/wxauth/pkg/queryparams"
)

// Identity is the session payload of an authorized user.
type Identity struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name,omitempty"`
	ProviderID  string         `json:"provider_id"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// Session is the session type the flow works with.
type Session = session.Session[Identity]

// Token is the provider credential obtained from a code.
type Token struct {
	AccessToken string
	OpenID      string
	Scope       string
}

// Profile is the provider's view of a user.
type Profile struct {
	ProviderID string
	UnionID    string
	Nickname   string
	AvatarURL  string
	Raw        map[string]any
}

// Gateway is the identity provider.
type Gateway interface {
	AuthorizeURL(redirectURI string, silent bool, state string) string
	Exchange(ctx context.Context, code string) (Token, error)
	Profile(ctx context.Context, token Token) (Profile, error)
}

// Accounts maps provider profiles to local users.
type Accounts interface {
	Upsert(ctx context.Context, profile Profile) (Identity, error)
}

// Outcome is the result of one Step.
type Outcome struct {
	State      State
	RedirectTo string
	Session    Session
}

// Flow runs authorization steps.
type Flow struct {
	gateway  Gateway
	accounts Accounts
	domains  *domainrouter.Router
	silent   []string
	hosts    []string
	state    string
	logger   *slog.Logger
}

// Option configures a Flow.
type Option func(*Flow)

// WithDomainRouter sets the path prefix to authorization domain table.
func WithDomainRouter(r *domainrouter.Router) Option {
	return func(f *Flow) { f.domains = r }
}

// WithSilentRoutes lists request paths authorized with the silent scope.
func WithSilentRoutes(paths ...string) Option {
	return func(f *Flow) { f.silent = append(f.silent, paths...) }
}

// WithAllowedHosts adds hosts accepted as redirectUrl targets besides the
// current host and the router domains.
func WithAllowedHosts(hosts ...string) Option {
	return func(f *Flow) { f.hosts = append(f.hosts, hosts...) }
}

// WithState sets the state sent to the provider.
func WithState(state string) Option {
	return func(f *Flow) {
		if state != "" {
			f.state = state
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Flow.
func New(gateway Gateway, accounts Accounts, opts ...Option) *Flow {
	f := &Flow{
		gateway:  gateway,
		accounts: accounts,
		state:    "STATE",
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Step classifies req and performs the matching transition.
// On failure the Outcome carries Failed and the unchanged session.
func (f *Flow) Step(ctx context.Context, req Request, sess Session) (Outcome, error) {
	state := Classify(req, sess.IsAuthenticated())
	log := f.logger.With(logger.State(state.String()), logger.Path(req.Path))

	switch state {
	case NeedsRedirect:
		target := f.AuthorizeURL(req)
		log.DebugContext(ctx, "redirecting to provider", slog.String("location", target))
		return Outcome{State: state, RedirectTo: target, Session: sess}, nil

	case HasCode:
		authed, ident, err := f.Exchange(ctx, req.Code, sess)
		if err != nil {
			log.ErrorContext(ctx, "authorization failed", logger.Error(err))
			return Outcome{State: Failed, Session: sess}, err
		}
		target := f.CompletionURL(req)
		log.InfoContext(ctx, "session written", logger.UserID(ident.UserID), slog.String("location", target))
		return Outcome{State: SessionWritten, RedirectTo: target, Session: authed}, nil

	default:
		log.DebugContext(ctx, "pass through")
		return Outcome{State: state, Session: sess}, nil
	}
}

// Exchange trades code for an identity and returns sess authenticated as
// that identity, with a rotated token.
func (f *Flow) Exchange(ctx context.Context, code string, sess Session) (Session, Identity, error) {
	if code == "" {
		return sess, Identity{}, fmt.Errorf("%w: %w", ErrAuthorization, ErrEmptyCode)
	}
	token, err := f.gateway.Exchange(ctx, code)
	if err != nil {
		return sess, Identity{}, fmt.Errorf("%w: exchange code: %w", ErrAuthorization, err)
	}
	profile, err := f.gateway.Profile(ctx, token)
	if err != nil {
		return sess, Identity{}, fmt.Errorf("%w: fetch profile: %w", ErrAuthorization, err)
	}
	ident, err := f.accounts.Upsert(ctx, profile)
	if err != nil {
		return sess, Identity{}, fmt.Errorf("%w: upsert user: %w", ErrAuthorization, err)
	}
	if err := sess.Authenticate(ident.UserID, ident); err != nil {
		return sess, Identity{}, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	return sess, ident, nil
}

// AuthorizeURL builds the provider redirect for req.
//
// When the path maps to an authorization domain the callback is sent to that
// domain with the current URL in redirectUrl; otherwise the callback is the
// current URL itself.
func (f *Flow) AuthorizeURL(req Request) string {
	current := req.CurrentURL()
	callback := current
	if domain := f.domains.Match(req.OriginalURL); domain != "" {
		callback = queryparams.Fill(req.Scheme+"://"+domain+req.OriginalURL, map[string]string{
			ParamRedirectURL: current,
		})
	}
	return f.gateway.AuthorizeURL(callback, slices.Contains(f.silent, req.Path), f.state)
}

// CompletionURL is where the browser goes after a successful exchange: the
// redirectUrl parameter when it is a trusted target, else the request
// itself, with authorized=true added and the callback parameters removed.
func (f *Flow) CompletionURL(req Request) string {
	target := req.OriginalURL
	if req.RedirectURL != "" {
		if safe, ok := f.trusted(req.RedirectURL, req.Host); ok {
			target = safe
		} else {
			f.logger.Warn("ignoring untrusted redirect target", slog.String("redirect_url", req.RedirectURL))
		}
	}
	return queryparams.Fill(target, map[string]string{ParamAuthorized: "true"}, ParamCode, ParamState, ParamRedirectURL)
}

// localPath reports whether raw is a path on the current host. Browsers read
// "/\host" the same as "//host".
func localPath(raw string) bool {
	if !strings.HasPrefix(raw, "/") {
		return false
	}
	return len(raw) == 1 || (raw[1] != '/' && raw[1] != '\\')
}

// trusted accepts relative paths and absolute http(s) URLs whose host is
// the current host, a router domain or an allowed host. A value that is
// still percent-encoded is decoded once.
func (f *Flow) trusted(raw, currentHost string) (string, bool) {
	if lower := strings.ToLower(raw); strings.HasPrefix(lower, "http%3a") || strings.HasPrefix(lower, "https%3a") || strings.HasPrefix(lower, "%2f") {
		if decoded, err := url.QueryUnescape(raw); err == nil {
			raw = decoded
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if u.Host == "" && localPath(raw) {
			return raw, true
		}
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Host)
	if host == strings.ToLower(currentHost) || slices.Contains(f.domains.Domains(), host) || slices.Contains(f.hosts, host) {
		return raw, true
	}
	return "", false
}
