// Package domainrouter maps request paths to the domain that should run the
// authorization round trip for them.
//
// Routes are matched in declaration order by plain string prefix and the
// first match wins. Because an earlier, shorter prefix would hide every
// later route it prefixes, New rejects such tables; NewLenient accepts them
// and keeps first-match semantics.
package domainrouter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShadowedRoute = errors.New("domainrouter: route is shadowed by an earlier prefix")
	ErrInvalidRoute  = errors.New("domainrouter: invalid route")
)

// Route maps a path prefix to a domain.
type Route struct {
	Prefix string
	Domain string
}

// Router is an immutable ordered route table.
type Router struct {
	routes []Route
}

// New validates routes and rejects tables with shadowed entries.
func New(routes ...Route) (*Router, error) {
	if err := validate(routes); err != nil {
		return nil, err
	}
	for j := range routes {
		for i := range j {
			if strings.HasPrefix(routes[j].Prefix, routes[i].Prefix) {
				return nil, fmt.Errorf("%w: %q by %q", ErrShadowedRoute, routes[j].Prefix, routes[i].Prefix)
			}
		}
	}
	return &Router{routes: clone(routes)}, nil
}

// NewLenient validates routes but allows shadowing.
func NewLenient(routes ...Route) (*Router, error) {
	if err := validate(routes); err != nil {
		return nil, err
	}
	return &Router{routes: clone(routes)}, nil
}

// Match returns the domain of the first route whose prefix starts path, or "".
func (r *Router) Match(path string) string {
	if r == nil {
		return ""
	}
	for _, rt := range r.routes {
		if strings.HasPrefix(path, rt.Prefix) {
			return rt.Domain
		}
	}
	return ""
}

// Routes returns a copy of the table.
func (r *Router) Routes() []Route {
	if r == nil {
		return nil
	}
	return clone(r.routes)
}

// Domains lists the distinct target domains in declaration order.
func (r *Router) Domains() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool, len(r.routes))
	var out []string
	for _, rt := range r.routes {
		if !seen[rt.Domain] {
			seen[rt.Domain] = true
			out = append(out, rt.Domain)
		}
	}
	return out
}

// Parse reads "prefix=domain" pairs separated by commas, e.g.
// "/activity=activity.example.com,/user=www.example.com".
func Parse(s string) ([]Route, error) {
	var routes []Route
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		prefix, domain, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not prefix=domain", ErrInvalidRoute, item)
		}
		routes = append(routes, Route{Prefix: strings.TrimSpace(prefix), Domain: strings.TrimSpace(domain)})
	}
	return routes, nil
}

func validate(routes []Route) error {
	for _, rt := range routes {
		if !strings.HasPrefix(rt.Prefix, "/") {
			return fmt.Errorf("%w: prefix %q must start with /", ErrInvalidRoute, rt.Prefix)
		}
		if rt.Domain == "" || strings.ContainsAny(rt.Domain, "/?# ") {
			return fmt.Errorf("%w: domain %q for %q", ErrInvalidRoute, rt.Domain, rt.Prefix)
		}
	}
	return nil
}

func clone(routes []Route) []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}
