package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/tenant/repository"
	"github.com/clinicore/clinicore-backend/internal/tenant/service"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// TenantHandler handles tenant administration endpoints
type TenantHandler struct {
	service *service.TenantService
	logger  *logger.Logger
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(svc *service.TenantService, log *logger.Logger) *TenantHandler {
	return &TenantHandler{
		service: svc,
		logger:  log,
	}
}

// List lists tenants. Super-admin only.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	tenants, total, err := h.service.List(r.Context(), r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, tenants, httputil.NewMeta(page, perPage, total))
}

// Get gets a tenant by id
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}

// GetBySubdomain resolves a tenant by subdomain. Public, for the login flow.
func (h *TenantHandler) GetBySubdomain(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetBySubdomain(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}

// CreateTenantRequest is the request body for registering a tenant
type CreateTenantRequest struct {
	Name      string          `json:"name" validate:"required,min=2,max=200"`
	Subdomain string          `json:"subdomain" validate:"required,min=2,max=60,lowercase,alphanum"`
	Document  string          `json:"document" validate:"required,min=5,max=30"`
	Plan      string          `json:"plan" validate:"required,oneof=basic standard premium"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

// Create registers a new tenant. Super-admin only.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	t := &repository.Tenant{
		Name:      req.Name,
		Subdomain: req.Subdomain,
		Document:  req.Document,
		Plan:      req.Plan,
		Settings:  req.Settings,
	}

	if err := h.service.Create(r.Context(), t); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, t)
}

// UpdateTenantRequest is the request body for updating a tenant
type UpdateTenantRequest struct {
	Name string `json:"name" validate:"required,min=2,max=200"`
	Plan string `json:"plan" validate:"required,oneof=basic standard premium"`
}

// Update updates a tenant's name and plan
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateTenantRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	t := &repository.Tenant{
		ID:   chi.URLParam(r, "id"),
		Name: req.Name,
		Plan: req.Plan,
	}

	if err := h.service.Update(r.Context(), t); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}

// SetStatusRequest is the request body for a tenant lifecycle transition
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=trial active suspended cancelled"`
}

// SetStatus moves a tenant through its lifecycle. Super-admin only.
func (h *TenantHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	t, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}
