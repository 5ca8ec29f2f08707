package auth

import (
	"net/http"
	"strings"

	"github.com/bazarly/bazarly/internal/platform/httpx"
	"github.com/bazarly/bazarly/internal/shared"
)

// Middleware resolves the Authorization header into a request-scoped
// principal. Routes behind it always see an authenticated principal;
// capability checks happen separately in the rbac package.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		principal, err := s.Resolve(r.Context(), token)
		if err != nil {
			httpx.Fail(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
