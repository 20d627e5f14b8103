package authflow

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/wxauth/pkg/useragent"
)

// Query parameters of the authorization round trip.
const (
	ParamCode        = "code"
	ParamState       = "state"
	ParamAuthorized  = "authorized"
	ParamRedirectURL = "redirectUrl"
)

// Request is the authorization view of an inbound request. It is built per
// request and never persisted.
type Request struct {
	// OriginalURL is the path and query as received.
	OriginalURL string
	Path        string
	Host        string
	Scheme      string
	Code        string
	State       string
	Authorized  bool
	RedirectURL string
	UserAgent   string
}

// RequestFromHTTP extracts a Request from r. The scheme honours
// X-Forwarded-Proto.
func RequestFromHTTP(r *http.Request) Request {
	q := r.URL.Query()
	return Request{
		OriginalURL: r.URL.RequestURI(),
		Path:        r.URL.Path,
		Host:        r.Host,
		Scheme:      scheme(r),
		Code:        q.Get(ParamCode),
		State:       q.Get(ParamState),
		Authorized:  q.Get(ParamAuthorized) == "true",
		RedirectURL: q.Get(ParamRedirectURL),
		UserAgent:   r.UserAgent(),
	}
}

// CurrentURL is the absolute URL of the request.
func (r Request) CurrentURL() string {
	return r.Scheme + "://" + r.Host + r.OriginalURL
}

// Embedded reports whether the request comes from the WeChat in-app browser.
func (r Request) Embedded() bool {
	return useragent.IsWeChat(r.UserAgent)
}

func scheme(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		p, _, _ = strings.Cut(p, ",")
		return strings.ToLower(strings.TrimSpace(p))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
