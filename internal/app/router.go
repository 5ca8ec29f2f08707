package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bazarly/bazarly/internal/audit"
	"github.com/bazarly/bazarly/internal/auth"
	"github.com/bazarly/bazarly/internal/catalog"
	"github.com/bazarly/bazarly/internal/finance"
	"github.com/bazarly/bazarly/internal/ledger"
	"github.com/bazarly/bazarly/internal/observability"
	"github.com/bazarly/bazarly/internal/orders"
	"github.com/bazarly/bazarly/internal/rbac"
	"github.com/bazarly/bazarly/internal/returns"
	"github.com/bazarly/bazarly/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthService    *auth.Service
	AuthHandler    *auth.Handler
	OrdersHandler  *orders.Handler
	ReturnsHandler *returns.Handler
	LedgerHandler  *ledger.Handler
	FinanceHandler *finance.Handler
	CatalogHandler *catalog.Handler
	AuditHandler   *audit.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi router. /healthz, /metrics and
// /auth/login stay outside the auth middleware; everything else
// requires a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	r.Mount("/auth", params.AuthHandler.Routes())

	r.Group(func(r chi.Router) {
		r.Use(params.AuthService.Middleware)

		r.Mount("/orders", params.OrdersHandler.Routes())
		r.Mount("/returns", params.ReturnsHandler.Routes())
		r.Route("/inventory", func(r chi.Router) {
			params.LedgerHandler.MountRoutes(r)
		})
		r.Mount("/reports", params.FinanceHandler.ReportRoutes())
		r.Mount("/expenses", params.FinanceHandler.ExpenseRoutes())
		r.Mount("/catalog", params.CatalogHandler.Routes())
		r.Route("/audit", func(r chi.Router) {
			params.AuditHandler.MountRoutes(r)
		})
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(rbac.Require(rbac.ReportsView))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
