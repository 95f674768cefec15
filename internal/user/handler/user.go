package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/user/repository"
	"github.com/clinicore/clinicore-backend/internal/user/service"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// UserHandler handles user administration endpoints
type UserHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(svc *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  log,
	}
}

// List lists users with filters
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	f := repository.Filter{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
	}
	switch r.URL.Query().Get("active") {
	case "true":
		active := true
		f.Active = &active
	case "false":
		active := false
		f.Active = &active
	}

	users, total, err := h.service.List(r.Context(), f, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, users, httputil.NewMeta(page, perPage, total))
}

// Get gets a user by id
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, u)
}

// CreateUserRequest is the request body for registering a user
type CreateUserRequest struct {
	Email          string   `json:"email" validate:"required,email"`
	Name           string   `json:"name" validate:"required,min=2,max=200"`
	Password       string   `json:"password" validate:"required,min=8,max=128"`
	Role           string   `json:"role" validate:"required"`
	ProfessionalID *string  `json:"professional_id,omitempty" validate:"omitempty,min=2,max=50"`
	Specialties    []string `json:"specialties,omitempty"`
}

// Create registers a new user
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	u := &repository.User{
		Email:          req.Email,
		Name:           req.Name,
		Role:           req.Role,
		ProfessionalID: req.ProfessionalID,
		Specialties:    req.Specialties,
	}

	if err := h.service.Create(r.Context(), u, req.Password); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, u)
}

// UpdateUserRequest is the request body for updating a user
type UpdateUserRequest struct {
	Name           string   `json:"name" validate:"required,min=2,max=200"`
	Role           string   `json:"role" validate:"required"`
	ProfessionalID *string  `json:"professional_id,omitempty" validate:"omitempty,min=2,max=50"`
	Specialties    []string `json:"specialties,omitempty"`
}

// Update updates a user's name, role and specialties
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	u := &repository.User{
		ID:             chi.URLParam(r, "id"),
		Name:           req.Name,
		Role:           req.Role,
		ProfessionalID: req.ProfessionalID,
		Specialties:    req.Specialties,
	}

	if err := h.service.Update(r.Context(), u); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, u)
}

// Activate enables a user's login
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Activate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Deactivate disables a user's login
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// SetPasswordRequest is the request body for a password reset
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// SetPassword replaces a user's password
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req SetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.SetPassword(r.Context(), chi.URLParam(r, "id"), req.Password); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
