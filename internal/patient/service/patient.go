package service

import (
	"context"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/events"
	"github.com/clinicore/clinicore-backend/internal/patient/repository"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/messaging"
)

// PatientStore is the persistence contract of the patient service
type PatientStore interface {
	Create(ctx context.Context, p *repository.Patient) error
	GetByID(ctx context.Context, id string) (*repository.Patient, error)
	List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.Patient, int64, error)
	Update(ctx context.Context, p *repository.Patient) error
	SetActive(ctx context.Context, id string, active bool) error
	SetConsent(ctx context.Context, id string, consent bool) (*repository.Patient, error)
	History(ctx context.Context, id string) (*repository.History, error)
}

// PatientService handles patient business logic
type PatientService struct {
	repo      PatientStore
	publisher *events.Publisher
	auditor   *audit.Recorder
	logger    *logger.Logger
}

// NewPatientService creates a new patient service
func NewPatientService(repo PatientStore, publisher *events.Publisher, auditor *audit.Recorder, log *logger.Logger) *PatientService {
	return &PatientService{
		repo:      repo,
		publisher: publisher,
		auditor:   auditor,
		logger:    log,
	}
}

// Create registers a new patient
func (s *PatientService) Create(ctx context.Context, p *repository.Patient) error {
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	s.auditor.Record(ctx, "patient.create", "patient", p.ID, map[string]string{
		"document": p.Document,
	})
	s.publisher.Publish(ctx, messaging.EventPatientCreated, p)

	return nil
}

// GetByID gets a patient by id
func (s *PatientService) GetByID(ctx context.Context, id string) (*repository.Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists patients with filters and pagination
func (s *PatientService) List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.Patient, int64, error) {
	return s.repo.List(ctx, f, page, perPage)
}

// Update updates a patient's demographic fields. The document is immutable
// after registration.
func (s *PatientService) Update(ctx context.Context, p *repository.Patient) error {
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	s.auditor.Record(ctx, "patient.update", "patient", p.ID, nil)
	return nil
}

// Deactivate soft-deletes a patient
func (s *PatientService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}

	s.auditor.Record(ctx, "patient.deactivate", "patient", id, nil)
	return nil
}

// Reactivate restores a soft-deleted patient
func (s *PatientService) Reactivate(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}

	s.auditor.Record(ctx, "patient.reactivate", "patient", id, nil)
	return nil
}

// History returns a patient's appointments and medical records
func (s *PatientService) History(ctx context.Context, id string) (*repository.History, error) {
	return s.repo.History(ctx, id)
}

// SetConsent records the patient's privacy consent decision
func (s *PatientService) SetConsent(ctx context.Context, id string, consent bool) (*repository.Patient, error) {
	p, err := s.repo.SetConsent(ctx, id, consent)
	if err != nil {
		return nil, err
	}

	action := "patient.consent.granted"
	if !consent {
		action = "patient.consent.revoked"
	}
	s.auditor.Record(ctx, action, "patient", id, nil)

	return p, nil
}
