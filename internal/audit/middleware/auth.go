package middleware

import (
	"context"
	"net/http"
	"strings"

	httphandler "github.com/aras-services/pam-policy-bridge/internal/audit/delivery/http"
	"github.com/aras-services/pam-policy-bridge/internal/audit/jwtauth"
)

type contextKey string

const subjectContextKey contextKey = "admin_subject"

// Auth gates the audit read API behind a bearer token issued by
// jwtauth.Service, the same "Authorization: Bearer <token>" convention
// the teacher's own AuthMiddleware uses.
type Auth struct {
	tokens *jwtauth.Service
}

func NewAuth(tokens *jwtauth.Service) *Auth {
	return &Auth{tokens: tokens}
}

func (m *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			httphandler.WriteUnauthorized(w, "Authorization header required")
			return
		}

		claims, err := m.tokens.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			httphandler.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectContextKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
