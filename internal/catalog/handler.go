package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bazarly/bazarly/internal/platform/httpx"
	"github.com/bazarly/bazarly/internal/rbac"
)

type productRequest struct {
	SKU       string  `json:"sku" validate:"required,max=64"`
	Name      string  `json:"name" validate:"required,max=255"`
	Stock     int64   `json:"stockQuantity" validate:"gte=0"`
	MinStock  int64   `json:"minStock" validate:"gte=0"`
	CostPrice float64 `json:"costPrice" validate:"gte=0"`
	SalePrice float64 `json:"salePrice" validate:"gte=0"`
	IsActive  *bool   `json:"isActive"`
}

type counterpartyRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=CUSTOMER SUPPLIER"`
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"max=32"`
}

// Handler exposes the catalog HTTP surface.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/products", h.listProducts)
	r.Get("/products/low-stock", h.lowStock)
	r.Get("/products/{id}", h.getProduct)
	r.With(rbac.Require(rbac.CatalogWrite)).Post("/products", h.createProduct)
	r.With(rbac.Require(rbac.CatalogWrite)).Put("/products/{id}", h.updateProduct)
	r.Get("/counterparties/{id}", h.getCounterparty)
	r.With(rbac.Require(rbac.CatalogWrite)).Post("/counterparties", h.createCounterparty)
	return r
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search")}
	if v := q.Get("isActive"); v != "" {
		active := v == "true"
		filters.IsActive = &active
	}
	filters.LowStock = q.Get("lowStock") == "true"
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))

	products, total, err := h.svc.ListProducts(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"items": products, "total": total})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListLowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), Product{
		SKU:           req.SKU,
		Name:          req.Name,
		StockQuantity: req.Stock,
		MinStock:      req.MinStock,
		CostPrice:     req.CostPrice,
		SalePrice:     req.SalePrice,
	})
	if errors.Is(err, ErrDuplicateSKU) {
		httpx.Fail(w, http.StatusConflict, "sku already exists")
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, Product{
		Name:      req.Name,
		MinStock:  req.MinStock,
		CostPrice: req.CostPrice,
		SalePrice: req.SalePrice,
		IsActive:  isActive,
	})
	if errors.Is(err, ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) getCounterparty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid counterparty id")
		return
	}
	c, err := h.svc.GetCounterparty(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "counterparty not found")
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, c)
}

func (h *Handler) createCounterparty(w http.ResponseWriter, r *http.Request) {
	var req counterpartyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.svc.CreateCounterparty(r.Context(), Counterparty{
		Kind:  CounterpartyKind(req.Kind),
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, c)
}
