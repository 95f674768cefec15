package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/inventory/repository"
	"github.com/clinicore/clinicore-backend/internal/inventory/service"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// InventoryHandler handles product and stock endpoints
type InventoryHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(svc *service.InventoryService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  log,
	}
}

// ListProducts lists products with filters
func (h *InventoryHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	f := repository.ProductFilter{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
		LowStock: r.URL.Query().Get("low_stock") == "true",
	}
	switch r.URL.Query().Get("active") {
	case "true":
		active := true
		f.Active = &active
	case "false":
		active := false
		f.Active = &active
	}

	products, total, err := h.service.ListProducts(r.Context(), f, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, httputil.NewMeta(page, perPage, total))
}

// GetProduct gets a product by id
func (h *InventoryHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// CreateProductRequest is the request body for registering a product
type CreateProductRequest struct {
	SKU            string  `json:"sku" validate:"required,min=1,max=60"`
	Name           string  `json:"name" validate:"required,min=2,max=200"`
	Category       *string `json:"category,omitempty"`
	Unit           string  `json:"unit" validate:"required,max=20"`
	MinStock       int     `json:"min_stock" validate:"min=0"`
	MaxStock       *int    `json:"max_stock,omitempty" validate:"omitempty,min=0"`
	InitialStock   int     `json:"initial_stock" validate:"min=0"`
	PriceCents     int64   `json:"price_cents" validate:"min=0"`
	Controlled     bool    `json:"controlled"`
	RequiresScript bool    `json:"requires_script"`
}

// CreateProduct registers a new product
func (h *InventoryHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	p := &repository.Product{
		SKU:            req.SKU,
		Name:           req.Name,
		Category:       req.Category,
		Unit:           req.Unit,
		MinStock:       req.MinStock,
		MaxStock:       req.MaxStock,
		CurrentStock:   req.InitialStock,
		PriceCents:     req.PriceCents,
		Controlled:     req.Controlled,
		RequiresScript: req.RequiresScript,
	}

	if err := h.service.CreateProduct(r.Context(), p); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, p)
}

// UpdateProductRequest is the request body for updating a product. SKU and
// stock are immutable here; stock moves through movements.
type UpdateProductRequest struct {
	Name           string  `json:"name" validate:"required,min=2,max=200"`
	Category       *string `json:"category,omitempty"`
	Unit           string  `json:"unit" validate:"required,max=20"`
	MinStock       int     `json:"min_stock" validate:"min=0"`
	MaxStock       *int    `json:"max_stock,omitempty" validate:"omitempty,min=0"`
	PriceCents     int64   `json:"price_cents" validate:"min=0"`
	Controlled     bool    `json:"controlled"`
	RequiresScript bool    `json:"requires_script"`
	Active         *bool   `json:"active,omitempty"`
}

// UpdateProduct updates a product's descriptive fields
func (h *InventoryHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	p := &repository.Product{
		ID:             chi.URLParam(r, "id"),
		Name:           req.Name,
		Category:       req.Category,
		Unit:           req.Unit,
		MinStock:       req.MinStock,
		MaxStock:       req.MaxStock,
		PriceCents:     req.PriceCents,
		Controlled:     req.Controlled,
		RequiresScript: req.RequiresScript,
		Active:         true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := h.service.UpdateProduct(r.Context(), p); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// MoveRequest is the request body for recording a stock movement
type MoveRequest struct {
	Type     string  `json:"type" validate:"required,oneof=in out adjustment expired transfer"`
	Quantity int     `json:"quantity" validate:"required"`
	Reason   *string `json:"reason,omitempty" validate:"omitempty,max=300"`
}

// Move records a stock movement against a product
func (h *InventoryHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	m := &repository.Movement{
		ProductID: chi.URLParam(r, "id"),
		Type:      req.Type,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
	}

	product, err := h.service.Move(r.Context(), m)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, map[string]interface{}{
		"movement": m,
		"product":  product,
	})
}

// ListMovements lists a product's movements, newest first
func (h *InventoryHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	movements, total, err := h.service.ListMovements(r.Context(), chi.URLParam(r, "id"), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, httputil.NewMeta(page, perPage, total))
}

// Summary aggregates the tenant's inventory state
func (h *InventoryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}
