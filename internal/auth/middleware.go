// Package auth provides HTTP middleware guarding the MCP endpoint with a
// static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// realm is advertised in WWW-Authenticate on rejection.
const realm = `Bearer realm="gqlfetch-mcp"`

// NewAuthMiddleware returns middleware that requires
//
//	Authorization: Bearer <token>
//
// An empty token disables the check. The "Bearer " prefix is case-sensitive
// with exactly one space. Rejected requests get 401 with a WWW-Authenticate
// header and never reach next. OPTIONS requests pass untouched so CORS
// preflights work without credentials.
func NewAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if !validBearer(r.Header.Get("Authorization"), token) {
				w.Header().Set("WWW-Authenticate", realm)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validBearer(header, token string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	provided := header[len(prefix):]
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1
}
