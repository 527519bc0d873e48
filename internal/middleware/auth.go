// Package middleware provides the HTTP middleware chain: bearer
// authentication, CORS, rate limiting and request tracing.
package middleware

import (
	"net/http"
	"strings"

	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/httputil"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// AuthMiddleware guards routes behind bearer-token authentication.
type AuthMiddleware struct {
	manager *auth.Manager
	log     *logger.Logger
}

// NewAuthMiddleware creates an authentication middleware backed by the
// token manager.
func NewAuthMiddleware(manager *auth.Manager, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{manager: manager, log: log}
}

// Handler rejects requests without a valid bearer token and attaches
// the verified identity to the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.reject(w, r, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.reject(w, r, "Authorization header must be of the form: Bearer <token>")
			return
		}

		identity, err := m.manager.Verify(parts[1])
		if err != nil {
			m.log.WithContext(r.Context()).WithError(err).Warn("token verification failed")
			m.reject(w, r, "invalid or expired token")
			return
		}

		ctx := auth.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, message string) {
	m.log.WithContext(r.Context()).WithFields(map[string]any{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Debug("request rejected: ", message)
	httputil.WriteError(w, http.StatusUnauthorized, httputil.KindUnauthorized, message)
}
