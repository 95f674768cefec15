package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/appointment/repository"
	"github.com/clinicore/clinicore-backend/internal/appointment/service"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// AppointmentHandler handles appointment endpoints
type AppointmentHandler struct {
	service *service.AppointmentService
	logger  *logger.Logger
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(svc *service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: svc,
		logger:  log,
	}
}

// List lists appointments with filters
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	f := repository.Filter{
		ProfessionalID: r.URL.Query().Get("professional_id"),
		PatientID:      r.URL.Query().Get("patient_id"),
		Status:         r.URL.Query().Get("status"),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"from": "must be an RFC 3339 timestamp"}))
			return
		}
		f.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"to": "must be an RFC 3339 timestamp"}))
			return
		}
		f.To = &t
	}

	appointments, total, err := h.service.List(r.Context(), f, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, appointments, httputil.NewMeta(page, perPage, total))
}

// Get gets an appointment by id
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appt)
}

// CreateAppointmentRequest is the request body for creating an appointment
type CreateAppointmentRequest struct {
	PatientID      string    `json:"patient_id" validate:"required,uuid"`
	ProfessionalID string    `json:"professional_id" validate:"required,uuid"`
	RoomID         *string   `json:"room_id,omitempty" validate:"omitempty,uuid"`
	StartsAt       time.Time `json:"starts_at" validate:"required"`
	EndsAt         time.Time `json:"ends_at" validate:"required"`
	Notes          *string   `json:"notes,omitempty"`
}

// Create creates a new appointment
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	appt := &repository.Appointment{
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		RoomID:         req.RoomID,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Notes:          req.Notes,
	}

	if err := h.service.Create(r.Context(), appt); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, appt)
}

// UpdateAppointmentRequest is the request body for rescheduling
type UpdateAppointmentRequest struct {
	PatientID      string    `json:"patient_id" validate:"required,uuid"`
	ProfessionalID string    `json:"professional_id" validate:"required,uuid"`
	RoomID         *string   `json:"room_id,omitempty" validate:"omitempty,uuid"`
	StartsAt       time.Time `json:"starts_at" validate:"required"`
	EndsAt         time.Time `json:"ends_at" validate:"required"`
	Notes          *string   `json:"notes,omitempty"`
}

// Update reschedules an appointment
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateAppointmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	appt := &repository.Appointment{
		ID:             chi.URLParam(r, "id"),
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		RoomID:         req.RoomID,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Notes:          req.Notes,
	}

	if err := h.service.Update(r.Context(), appt); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appt)
}

// Confirm confirms an appointment
func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Confirm)
}

// CheckIn checks a patient in
func (h *AppointmentHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CheckIn)
}

// Start starts an appointment
func (h *AppointmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Start)
}

// Complete completes an appointment
func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete)
}

// NoShow marks an appointment as a no-show
func (h *AppointmentHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.NoShow)
}

// Cancel cancels an appointment with an optional reason
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason *string `json:"reason,omitempty"`
	}
	// Body is optional for cancellation
	_ = httputil.DecodeJSON(r, &req)

	appt, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*repository.Appointment, error)) {
	appt, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, appt)
}

// Availability returns the busy intervals of a professional on a date
func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "id")

	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		httputil.Error(w, errors.Validation(map[string]string{"date": "this field is required"}))
		return
	}

	day, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"date": "must be a YYYY-MM-DD date"}))
		return
	}

	intervals, err := h.service.Availability(r.Context(), professionalID, day)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, intervals)
}
