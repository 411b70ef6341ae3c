package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hydit/hydit-backend/internal/api/httpx"
	"github.com/hydit/hydit-backend/internal/auth"
)

type ctxKey string

const (
	ctxSubjectKey ctxKey = "subject"
	ctxRoleKey    ctxKey = "role"
)

// Subject returns the identity subject placed by Auth.
func Subject(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxSubjectKey).(string)
	return v, ok
}

func Role(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxRoleKey).(string)
	return v, ok
}

// RoleResolver reports the stored role for a subject, for requests that
// bypass token signing.
type RoleResolver func(ctx context.Context, subject string) (string, bool)

type AuthMiddleware struct {
	TM      *auth.TokenManager
	AppEnv  string
	DevRole RoleResolver
}

func NewAuthMiddleware(tm *auth.TokenManager, appEnv string, devRole RoleResolver) *AuthMiddleware {
	return &AuthMiddleware{TM: tm, AppEnv: appEnv, DevRole: devRole}
}

// Auth resolves the bearer token to an identity subject. In dev,
// "Bearer dev-<subject>" bypasses signing for local work.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ah := r.Header.Get("Authorization")
		if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "missing bearer token", nil)
			return
		}
		token := strings.TrimSpace(ah[len("Bearer "):])

		if m.AppEnv == "dev" && strings.HasPrefix(token, "dev-") {
			subject := strings.TrimPrefix(token, "dev-")
			role := "buyer"
			if m.DevRole != nil {
				if stored, ok := m.DevRole(r.Context(), subject); ok {
					role = stored
				}
			}
			ctx := context.WithValue(r.Context(), ctxSubjectKey, subject)
			ctx = context.WithValue(ctx, ctxRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := m.TM.ParseAccess(token)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "invalid access token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxSubjectKey, claims.SubjectID)
		ctx = context.WithValue(ctx, ctxRoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
