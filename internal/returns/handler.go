package returns

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazarly/bazarly/internal/orders"
	"github.com/bazarly/bazarly/internal/platform/db"
	"github.com/bazarly/bazarly/internal/platform/httpx"
	"github.com/bazarly/bazarly/internal/rbac"
	"github.com/bazarly/bazarly/internal/shared"
)

// Handler exposes the returns HTTP surface.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(rbac.Require(rbac.ReturnsCreate)).Post("/", h.create)
	r.Get("/", h.listByOrder)
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req CreateReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ret, err := h.svc.Create(r.Context(), principal, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, ret)
}

func (h *Handler) listByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(r.URL.Query().Get("orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "orderId query parameter required")
		return
	}
	result, err := h.svc.ListByOrder(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httpx.Fail(w, http.StatusNotFound, "order not found")
	case errors.Is(err, ErrAlreadyReturned), errors.Is(err, ErrNotReturnable),
		errors.Is(err, ErrQtyExceeded), errors.Is(err, db.ErrTxConflict):
		httpx.Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownLine), errors.Is(err, ErrNothingToReturn),
		errors.Is(err, orders.ErrInvalidType):
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
