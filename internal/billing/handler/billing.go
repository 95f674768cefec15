package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/billing/repository"
	"github.com/clinicore/clinicore-backend/internal/billing/service"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// BillingHandler handles invoice endpoints
type BillingHandler struct {
	service *service.BillingService
	logger  *logger.Logger
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(svc *service.BillingService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		service: svc,
		logger:  log,
	}
}

// List lists invoices with filters
func (h *BillingHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	f := repository.Filter{
		PatientID: r.URL.Query().Get("patient_id"),
		Status:    r.URL.Query().Get("status"),
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

	invoices, total, err := h.service.List(r.Context(), f, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, invoices, httputil.NewMeta(page, perPage, total))
}

// Get gets an invoice with its items
func (h *BillingHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// InvoiceItemRequest is one line of a new invoice
type InvoiceItemRequest struct {
	Description    string  `json:"description" validate:"required,max=300"`
	TussCode       *string `json:"tuss_code,omitempty"`
	Quantity       int     `json:"quantity" validate:"required,min=1"`
	UnitPriceCents int64   `json:"unit_price_cents" validate:"required,min=0"`
}

// CreateInvoiceRequest is the request body for issuing an invoice
type CreateInvoiceRequest struct {
	PatientID     string               `json:"patient_id" validate:"required,uuid"`
	AppointmentID *string              `json:"appointment_id,omitempty" validate:"omitempty,uuid"`
	Items         []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountCents int64                `json:"discount_cents" validate:"min=0"`
	DueDate       time.Time            `json:"due_date" validate:"required"`
	Notes         *string              `json:"notes,omitempty"`
}

// Create issues a new invoice
func (h *BillingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	inv := &repository.Invoice{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		DiscountCents: req.DiscountCents,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
	}
	for _, item := range req.Items {
		inv.Items = append(inv.Items, repository.Item{
			Description:    item.Description,
			TussCode:       item.TussCode,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	if err := h.service.Create(r.Context(), inv); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, inv)
}

// PayInvoiceRequest is the request body for paying an invoice
type PayInvoiceRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash credit_card debit_card pix bank_transfer health_plan"`
}

// Pay marks an invoice as paid
func (h *BillingHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req PayInvoiceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	inv, err := h.service.Pay(r.Context(), chi.URLParam(r, "id"), req.PaymentMethod)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// Cancel cancels an unpaid invoice
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// Summary returns invoice counts and totals grouped by status
func (h *BillingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// Daily returns paid revenue per day
func (h *BillingHandler) Daily(w http.ResponseWriter, r *http.Request) {
	var from, to *time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"from": "must be a YYYY-MM-DD date"}))
			return
		}
		from = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"to": "must be a YYYY-MM-DD date"}))
			return
		}
		to = &t
	}

	daily, err := h.service.Daily(r.Context(), from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, daily)
}
