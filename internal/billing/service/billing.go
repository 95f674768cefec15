package service

import (
	"context"
	"time"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/billing/repository"
	"github.com/clinicore/clinicore-backend/internal/events"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/messaging"
)

// InvoiceStore is the persistence contract of the billing service
type InvoiceStore interface {
	Create(ctx context.Context, inv *repository.Invoice) error
	GetByID(ctx context.Context, id string) (*repository.Invoice, error)
	List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.Invoice, int64, error)
	Pay(ctx context.Context, id, method string) (*repository.Invoice, error)
	Cancel(ctx context.Context, id string) (*repository.Invoice, error)
	Summary(ctx context.Context) ([]repository.Summary, error)
	Daily(ctx context.Context, from, to time.Time) ([]repository.DailyRevenue, error)
}

// BillingService handles invoice business logic
type BillingService struct {
	repo      InvoiceStore
	publisher *events.Publisher
	auditor   *audit.Recorder
	logger    *logger.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(repo InvoiceStore, publisher *events.Publisher, auditor *audit.Recorder, log *logger.Logger) *BillingService {
	return &BillingService{
		repo:      repo,
		publisher: publisher,
		auditor:   auditor,
		logger:    log,
	}
}

// Create issues a new invoice. The number and totals are derived in the
// repository transaction.
func (s *BillingService) Create(ctx context.Context, inv *repository.Invoice) error {
	if err := s.repo.Create(ctx, inv); err != nil {
		return err
	}

	s.auditor.Record(ctx, "invoice.create", "invoice", inv.ID, map[string]string{
		"number":     inv.Number,
		"patient_id": inv.PatientID,
	})
	s.publisher.Publish(ctx, messaging.EventInvoiceCreated, inv)

	return nil
}

// GetByID gets an invoice with its items
func (s *BillingService) GetByID(ctx context.Context, id string) (*repository.Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists invoices with filters and pagination
func (s *BillingService) List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.Invoice, int64, error) {
	return s.repo.List(ctx, f, page, perPage)
}

// Pay marks an invoice as paid with the given payment method
func (s *BillingService) Pay(ctx context.Context, id, method string) (*repository.Invoice, error) {
	inv, err := s.repo.Pay(ctx, id, method)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "invoice.pay", "invoice", id, map[string]string{
		"payment_method": method,
	})
	s.publisher.Publish(ctx, messaging.EventInvoicePaid, inv)

	return inv, nil
}

// Cancel cancels an unpaid invoice
func (s *BillingService) Cancel(ctx context.Context, id string) (*repository.Invoice, error) {
	inv, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "invoice.cancel", "invoice", id, nil)
	s.publisher.Publish(ctx, messaging.EventInvoiceCancelled, inv)

	return inv, nil
}

// Summary returns invoice counts and totals grouped by status
func (s *BillingService) Summary(ctx context.Context) ([]repository.Summary, error) {
	return s.repo.Summary(ctx)
}

// Daily returns paid revenue per day over the window, defaulting to the
// last 30 days
func (s *BillingService) Daily(ctx context.Context, from, to *time.Time) ([]repository.DailyRevenue, error) {
	end := time.Now()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}

	return s.repo.Daily(ctx, start, end)
}
