// Package clientip extracts the client address from requests that arrive
// through proxies or CDNs.
//
// Headers are checked in order: CF-Connecting-IP, DO-Connecting-IP,
// X-Forwarded-For (leftmost entry), X-Real-IP, then RemoteAddr. Invalid
// values and 0.0.0.0 are skipped.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

var headers = []string{"CF-Connecting-IP", "DO-Connecting-IP"}

// GetIP returns the normalized client IP, or the raw RemoteAddr when no
// valid address is found.
func GetIP(r *http.Request) string {
	for _, h := range headers {
		if ip := normalize(r.Header.Get(h)); ip != "" {
			return ip
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := normalize(first); ip != "" {
			return ip
		}
	}

	if ip := normalize(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := normalize(host); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func normalize(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
