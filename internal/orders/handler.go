package orders

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazarly/bazarly/internal/platform/db"
	"github.com/bazarly/bazarly/internal/platform/httpx"
	"github.com/bazarly/bazarly/internal/rbac"
	"github.com/bazarly/bazarly/internal/shared"
)

// Handler exposes the orders HTTP surface.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(rbac.Require(rbac.OrdersCreate)).Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{type}/{id}", h.get)
	r.With(rbac.Require(rbac.OrdersUpdate)).Put("/{type}/{id}", h.update)
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.svc.Create(r.Context(), principal, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, order)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	typ, id, err := pathOrder(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Status == string(StatusCancelled) && !rbac.Allowed(principal.Role, rbac.OrdersCancel) {
		httpx.Fail(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	order, err := h.svc.Update(r.Context(), principal, typ, id, req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	typ, id, err := pathOrder(r)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.svc.Get(r.Context(), typ, id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Status: Status(q.Get("status")),
	}
	if raw := q.Get("type"); raw != "" {
		typ, err := ParseType(raw)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid order type")
			return
		}
		filters.Type = typ
	}
	filters.CounterpartyID, _ = strconv.ParseInt(q.Get("counterpartyId"), 10, 64)
	if raw := q.Get("from"); raw != "" {
		filters.From, _ = time.Parse(time.RFC3339, raw)
	}
	if raw := q.Get("to"); raw != "" {
		filters.To, _ = time.Parse(time.RFC3339, raw)
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))

	orders, total, err := h.svc.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"items":      orders,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "order not found")
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrCounterpartyNotFound):
		httpx.Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotCancellable):
		httpx.Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Fail(w, http.StatusConflict, "request already processed")
	case errors.Is(err, db.ErrTxConflict):
		httpx.Fail(w, http.StatusConflict, "concurrent update, please retry")
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInactiveProduct), errors.Is(err, ErrCounterpartyKind):
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func pathOrder(r *http.Request) (Type, int64, error) {
	typ, err := ParseType(chi.URLParam(r, "type"))
	if err != nil {
		return "", 0, errors.New("invalid order type")
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errors.New("invalid order id")
	}
	return typ, id, nil
}
