// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"strings"
)

// ForceHTTPS returns a wrapper that issues a 308 Permanent Redirect to the
// HTTPS URL for plain-HTTP requests.  Requests that arrived over TLS, carry
// X-Forwarded-Proto: https, or target localhost pass through.  When enabled
// is false the wrapper is a no-op.
func ForceHTTPS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil ||
				strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") ||
				isLocal(stripPort(r.Host)) {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusPermanentRedirect)
		})
	}
}

func isLocal(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || host == "[::1]"
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if strings.HasPrefix(h, "[") {
		if i := strings.IndexByte(h, ']'); i != -1 {
			return h[:i+1]
		}
	}
	if i := strings.LastIndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
