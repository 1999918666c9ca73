package middleware

import (
	"net/http"
	"slices"

	"github.com/go-bank-sync/internal/domain"
)

// RequireRole admits requests whose token carries one of roles. Tokens minted
// before roles were assigned carry none and count as domain.RoleUser.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "missing session")
				return
			}
			role := claims.Role
			if role == "" {
				role = domain.RoleUser
			}
			if !slices.Contains(roles, role) {
				writeJSONError(w, http.StatusForbidden, "role "+role+" may not access this route")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
