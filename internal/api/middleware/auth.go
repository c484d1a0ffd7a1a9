package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"spotscan/pkg/crypto"
)

// Auth gates the dashboard's operator-only routes behind a single
// shared password, checked against a bcrypt hash rather than compared
// in plaintext. Callers send it as a bearer token:
// "Authorization: Bearer <password>".
func Auth(passwordHash string, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			if !crypto.CheckPasswordMatch(token, passwordHash) {
				log.Warnw("rejected control request with invalid operator credential", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "invalid credential", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
