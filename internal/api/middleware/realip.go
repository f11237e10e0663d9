package middleware

import (
	"net/http"
)

// ClientIPResolver finds the originating address of a request.
type ClientIPResolver interface {
	ClientIP(r *http.Request) string
}

// RealIP replaces r.RemoteAddr with the client address reported by trusted
// proxies, so rate-limit fingerprints and session records use the real
// client. Requests from untrusted peers keep their RemoteAddr.
func RealIP(resolver ClientIPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := resolver.ClientIP(r); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}
