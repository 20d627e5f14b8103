package response

import (
	"net/http"

	"github.com/dmitrymomot/wxauth/core/handler"
)

// Redirect issues a 302 Found to url.
func Redirect(url string) handler.Response {
	return RedirectWithStatus(url, http.StatusFound)
}

// RedirectWithStatus issues a redirect with a 3xx status. Any other status
// falls back to 302.
func RedirectWithStatus(url string, status int) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		if status < 300 || status > 399 {
			status = http.StatusFound
		}
		// Cached redirects would replay stale OAuth codes.
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, url, status)
		return nil
	}
}
