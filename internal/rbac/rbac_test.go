package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazarly/bazarly/internal/shared"
)

func TestRoleCapabilities(t *testing.T) {
	require.True(t, Allowed(shared.RoleAdmin, ReportsView))
	require.True(t, Allowed(shared.RoleManager, InventoryAdjust))
	require.False(t, Allowed(shared.RoleStaff, ReportsView))
	require.True(t, Allowed(shared.RoleStaff, OrdersCreate))
	require.False(t, Allowed(shared.RoleStaff, OrdersCancel))
	require.False(t, Allowed(shared.Role("BOGUS"), OrdersCreate))
}

func TestRequireMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Require(OrdersCancel)(next)

	t.Run("no principal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("forbidden role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Username: "ani", Role: shared.RoleStaff})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("allowed role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 2, Username: "bud", Role: shared.RoleManager})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		require.Equal(t, http.StatusNoContent, rec.Code)
	})
}
