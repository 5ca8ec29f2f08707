package finance

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazarly/bazarly/internal/platform/httpx"
	"github.com/bazarly/bazarly/internal/rbac"
	"github.com/bazarly/bazarly/internal/shared"
)

type expenseRequest struct {
	Category string  `json:"category" validate:"required,max=64"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Note     string  `json:"note" validate:"max=500"`
	SpentAt  string  `json:"spentAt" validate:"omitempty,datetime=2006-01-02"`
}

// Handler exposes reports and expense capture.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// ReportRoutes serves the read side under /reports.
func (h *Handler) ReportRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(rbac.Require(rbac.ReportsView))
	r.Get("/profit-loss", h.profitLoss)
	r.Get("/daily-ledger", h.dailyLedger)
	return r
}

// ExpenseRoutes serves expense capture under /expenses.
func (h *Handler) ExpenseRoutes() chi.Router {
	r := chi.NewRouter()
	r.With(rbac.Require(rbac.ExpensesCreate)).Post("/", h.addExpense)
	return r
}

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("startDate"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "startDate required as YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("endDate"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "endDate required as YYYY-MM-DD")
		return
	}
	// include the whole end day
	to = to.Add(24*time.Hour - time.Nanosecond)

	report, err := h.svc.ProfitLoss(r.Context(), from, to)
	if errors.Is(err, ErrInvalidRange) {
		httpx.Fail(w, http.StatusBadRequest, "endDate precedes startDate")
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

func (h *Handler) dailyLedger(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	day := time.Now().UTC()
	if raw != "" {
		var err error
		day, err = time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}
	report, err := h.svc.DailyLedger(r.Context(), day)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

func (h *Handler) addExpense(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	expense := Expense{Category: req.Category, Amount: req.Amount, Note: req.Note}
	if req.SpentAt != "" {
		expense.SpentAt, _ = time.Parse("2006-01-02", req.SpentAt)
	}
	created, err := h.svc.AddExpense(r.Context(), principal, expense)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}
