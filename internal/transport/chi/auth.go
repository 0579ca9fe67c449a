package chi

import "net/http"

// headerServiceToken carries the shared secret on every authenticated call.
const headerServiceToken = "x-service-token"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// ServiceTokenMiddleware returns a middleware that matches the
// x-service-token header against the configured secret. An empty secret
// disables authentication (pass-through).
func ServiceTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Auth disabled, pass everything through
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exempt paths
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get(headerServiceToken) != token {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
