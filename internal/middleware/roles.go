package middleware

import (
	"net/http"

	"github.com/hydit/hydit-backend/internal/api/httpx"
)

// RequireRole allows only the given roles through. Admin always passes.
// This is a cheap edge filter; the authorization gate re-checks against the
// stored user, which is authoritative.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{"admin": {}}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := Role(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "authentication required", nil)
				return
			}
			if _, ok := allowed[role]; !ok {
				httpx.WriteError(w, http.StatusForbidden, "unauthorized", "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
