package security

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	applog "snowlog/internal/log"
)

// BearerAuth gates requests behind a static bearer token. An empty token
// disables the gate.
type BearerAuth struct {
	token  []byte
	public []string
}

// NewBearerAuth creates the gate. Requests to public paths pass without a
// token.
func NewBearerAuth(token string, publicPaths ...string) *BearerAuth {
	return &BearerAuth{token: []byte(token), public: publicPaths}
}

// Enabled reports whether a token is configured.
func (a *BearerAuth) Enabled() bool {
	return len(a.token) > 0
}

// Authorized reports whether r carries the configured token.
func (a *BearerAuth) Authorized(r *http.Request) bool {
	if !a.Enabled() || slices.Contains(a.public, r.URL.Path) {
		return true
	}
	scheme, credentials, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(credentials)), a.token) == 1
}

// Middleware rejects unauthorized requests with 401
func (a *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authorized(r) {
			slog.WarnContext(r.Context(), "Unauthorized request",
				applog.FieldComponent, applog.ComponentSecurity,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="snowlog"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
