package service

import (
	"context"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/medrecord/repository"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// RecordStore is the persistence contract of the medical record service
type RecordStore interface {
	Create(ctx context.Context, rec *repository.Record) error
	GetByID(ctx context.Context, id string) (*repository.Record, error)
	ListByPatient(ctx context.Context, patientID, kind string, page, perPage int) ([]*repository.Record, int64, error)
}

// RecordService handles medical record business logic
type RecordService struct {
	repo    RecordStore
	auditor *audit.Recorder
	logger  *logger.Logger
}

// NewRecordService creates a new medical record service
func NewRecordService(repo RecordStore, auditor *audit.Recorder, log *logger.Logger) *RecordService {
	return &RecordService{
		repo:    repo,
		auditor: auditor,
		logger:  log,
	}
}

// Create appends a record to a patient's chart. The content is validated
// against the typed shape of the record kind, and the author is the
// authenticated user.
func (s *RecordService) Create(ctx context.Context, rec *repository.Record) error {
	if err := validateContent(rec.Kind, rec.Content); err != nil {
		return err
	}

	id, err := identity.FromContext(ctx)
	if err != nil {
		return err
	}
	rec.AuthorID = id.UserID

	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}

	s.auditor.Record(ctx, "medrecord.create", "medical_record", rec.ID, map[string]string{
		"patient_id": rec.PatientID,
		"kind":       rec.Kind,
	})

	return nil
}

// GetByID gets a record by id
func (s *RecordService) GetByID(ctx context.Context, id string) (*repository.Record, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient returns a patient's records, newest first
func (s *RecordService) ListByPatient(ctx context.Context, patientID, kind string, page, perPage int) ([]*repository.Record, int64, error) {
	return s.repo.ListByPatient(ctx, patientID, kind, page, perPage)
}
