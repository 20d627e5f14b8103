// Package queryparams rewrites the query string of a URL while preserving
// parameter order and the fragment.
package queryparams

import (
	"net/url"
	"slices"
	"strings"
)

// Fill sets params on rawURL and drops every key listed in without.
//
// Existing keys keep their position and take the new value; keys that were
// not present are appended in sorted order. Duplicated keys that are
// overwritten collapse to one. The fragment is carried over unchanged.
// Malformed query pairs are kept verbatim.
func Fill(rawURL string, params map[string]string, without ...string) string {
	base, fragment, hasFragment := strings.Cut(rawURL, "#")
	path, query, _ := strings.Cut(base, "?")

	type pair struct{ key, raw string }
	var pairs []pair
	seen := make(map[string]bool, len(params))

	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		rawKey, _, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			pairs = append(pairs, pair{raw: part})
			continue
		}
		if slices.Contains(without, key) {
			continue
		}
		if v, ok := params[key]; ok {
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, pair{key: key, raw: encode(key, v)})
			continue
		}
		pairs = append(pairs, pair{key: key, raw: part})
	}

	added := make([]string, 0, len(params))
	for k := range params {
		if !seen[k] && !slices.Contains(without, k) {
			added = append(added, k)
		}
	}
	slices.Sort(added)
	for _, k := range added {
		pairs = append(pairs, pair{key: k, raw: encode(k, params[k])})
	}

	var b strings.Builder
	b.WriteString(path)
	for i, p := range pairs {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.raw)
	}
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(fragment)
	}
	return b.String()
}

// Without removes keys from rawURL's query.
func Without(rawURL string, keys ...string) string {
	return Fill(rawURL, nil, keys...)
}

// Get returns the decoded value of key in rawURL's query, or "".
func Get(rawURL, key string) string {
	base, _, _ := strings.Cut(rawURL, "#")
	_, query, ok := strings.Cut(base, "?")
	if !ok {
		return ""
	}
	values, _ := url.ParseQuery(query)
	return values.Get(key)
}

func encode(k, v string) string {
	return url.QueryEscape(k) + "=" + url.QueryEscape(v)
}
