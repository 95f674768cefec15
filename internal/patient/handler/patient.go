package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/patient/repository"
	"github.com/clinicore/clinicore-backend/internal/patient/service"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// PatientHandler handles patient endpoints
type PatientHandler struct {
	service *service.PatientService
	logger  *logger.Logger
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(svc *service.PatientService, log *logger.Logger) *PatientHandler {
	return &PatientHandler{
		service: svc,
		logger:  log,
	}
}

// List lists patients with search and filters
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	f := repository.Filter{
		Search:     r.URL.Query().Get("search"),
		HealthPlan: r.URL.Query().Get("health_plan"),
	}
	switch r.URL.Query().Get("active") {
	case "true":
		active := true
		f.Active = &active
	case "false":
		active := false
		f.Active = &active
	}

	patients, total, err := h.service.List(r.Context(), f, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, patients, httputil.NewMeta(page, perPage, total))
}

// Get gets a patient by id
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// CreatePatientRequest is the request body for registering a patient
type CreatePatientRequest struct {
	FullName   string  `json:"full_name" validate:"required,min=2,max=200"`
	Document   string  `json:"document" validate:"required,min=5,max=30"`
	BirthDate  string  `json:"birth_date" validate:"required"`
	Gender     *string `json:"gender,omitempty" validate:"omitempty,oneof=female male other"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address    *string `json:"address,omitempty"`
	HealthPlan *string `json:"health_plan,omitempty"`
	Consent    bool    `json:"consent"`
}

// Create registers a new patient
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"birth_date": "must be a YYYY-MM-DD date"}))
		return
	}

	p := &repository.Patient{
		FullName:   req.FullName,
		Document:   req.Document,
		BirthDate:  birthDate,
		Gender:     req.Gender,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		HealthPlan: req.HealthPlan,
		Consent:    req.Consent,
	}
	if req.Consent {
		now := time.Now()
		p.ConsentAt = &now
	}

	if err := h.service.Create(r.Context(), p); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, p)
}

// UpdatePatientRequest is the request body for updating a patient. The
// document cannot be changed.
type UpdatePatientRequest struct {
	FullName   string  `json:"full_name" validate:"required,min=2,max=200"`
	BirthDate  string  `json:"birth_date" validate:"required"`
	Gender     *string `json:"gender,omitempty" validate:"omitempty,oneof=female male other"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address    *string `json:"address,omitempty"`
	HealthPlan *string `json:"health_plan,omitempty"`
}

// Update updates a patient's demographic fields
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdatePatientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"birth_date": "must be a YYYY-MM-DD date"}))
		return
	}

	p := &repository.Patient{
		ID:         chi.URLParam(r, "id"),
		FullName:   req.FullName,
		BirthDate:  birthDate,
		Gender:     req.Gender,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		HealthPlan: req.HealthPlan,
	}

	if err := h.service.Update(r.Context(), p); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Delete soft-deletes a patient
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Reactivate restores a soft-deleted patient
func (h *PatientHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ConsentRequest is the request body for recording consent
type ConsentRequest struct {
	Consent *bool `json:"consent" validate:"required"`
}

// Consent records the patient's privacy consent decision
func (h *PatientHandler) Consent(w http.ResponseWriter, r *http.Request) {
	var req ConsentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	p, err := h.service.SetConsent(r.Context(), chi.URLParam(r, "id"), *req.Consent)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// History returns a patient's appointments and medical records
func (h *PatientHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, history)
}
