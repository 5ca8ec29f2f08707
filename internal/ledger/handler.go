package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazarly/bazarly/internal/platform/httpx"
	"github.com/bazarly/bazarly/internal/rbac"
	"github.com/bazarly/bazarly/internal/shared"
)

// Handler wires HTTP endpoints for stock adjustments and the journal.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(rbac.Require(rbac.InventoryAdjust)).Post("/adjustments", h.handleAdjustment)
	r.With(rbac.Require(rbac.InventoryView)).Get("/movements", h.handleMovements)
}

type adjustmentRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	QtyChange int64  `json:"qty_change" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=255"`
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
		return
	}
	mv, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		QtyChange: req.QtyChange,
		Reason:    req.Reason,
		ActorID:   principal.UserID,
	})
	if err != nil {
		h.logger.Error("post adjustment", slog.Any("error", err), slog.Int64("product_id", req.ProductID))
		switch {
		case errors.Is(err, ErrNegativeStock):
			httpx.Fail(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrProductNotFound):
			httpx.Fail(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidQuantity):
			httpx.Fail(w, http.StatusBadRequest, err.Error())
		default:
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.OK(w, http.StatusCreated, mv)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{}
	filter.ProductID, _ = strconv.ParseInt(q.Get("productId"), 10, 64)
	filter.OrderID, _ = strconv.ParseInt(q.Get("orderId"), 10, 64)
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid from date")
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if filter.ProductID == 0 && filter.OrderID == 0 {
		httpx.Fail(w, http.StatusBadRequest, "productId or orderId required")
		return
	}
	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, movements)
}
