package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/medrecord/repository"
	"github.com/clinicore/clinicore-backend/internal/medrecord/service"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// RecordHandler handles medical record endpoints
type RecordHandler struct {
	service *service.RecordService
	logger  *logger.Logger
}

// NewRecordHandler creates a new medical record handler
func NewRecordHandler(svc *service.RecordService, log *logger.Logger) *RecordHandler {
	return &RecordHandler{
		service: svc,
		logger:  log,
	}
}

// CreateRecordRequest is the request body for appending a chart entry
type CreateRecordRequest struct {
	PatientID       string          `json:"patient_id" validate:"required,uuid"`
	AppointmentID   *string         `json:"appointment_id,omitempty" validate:"omitempty,uuid"`
	Kind            string          `json:"kind" validate:"required,oneof=anamnesis evolution prescription exam_request certificate referral"`
	Content         json.RawMessage `json:"content" validate:"required"`
	DiagnosticCodes []string        `json:"diagnostic_codes,omitempty"`
	Signature       *string         `json:"signature,omitempty"`
}

// Create appends a record to a patient's chart
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec := &repository.Record{
		PatientID:       req.PatientID,
		AppointmentID:   req.AppointmentID,
		Kind:            req.Kind,
		Content:         req.Content,
		DiagnosticCodes: req.DiagnosticCodes,
		Signature:       req.Signature,
	}

	if err := h.service.Create(r.Context(), rec); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rec)
}

// Get gets a record by id
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// ListByPatient lists a patient's records, newest first
func (h *RecordHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	records, total, err := h.service.ListByPatient(r.Context(),
		chi.URLParam(r, "patientID"), r.URL.Query().Get("kind"), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, records, httputil.NewMeta(page, perPage, total))
}
