package rbac

import (
	"net/http"

	"github.com/bazarly/bazarly/internal/platform/httpx"
	"github.com/bazarly/bazarly/internal/shared"
)

// Require gates a route on a capability. The auth middleware must have
// placed a principal on the request context first; a missing principal
// is treated as unauthenticated rather than forbidden.
func Require(cap Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !Allowed(principal.Role, cap) {
				httpx.Fail(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
