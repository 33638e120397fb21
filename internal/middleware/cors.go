// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"net/http"
	"regexp"
)

// OriginMatcher reports whether a browser origin may call the API.
type OriginMatcher func(origin string) bool

// NewOriginMatcher accepts the listed origins and any origin matching pattern.
func NewOriginMatcher(allowedOrigins []string, pattern *regexp.Regexp) OriginMatcher {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(origin string) bool {
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		return pattern != nil && pattern.MatchString(origin)
	}
}

// CORS allows origins accepted by match, with credentials so the session
// cookie travels cross-site. Preflight requests are answered directly.
func CORS(match OriginMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if match(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
