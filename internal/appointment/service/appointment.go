package service

import (
	"context"
	"time"

	"github.com/clinicore/clinicore-backend/internal/appointment/repository"
	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/events"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/messaging"
)

// transitions is the appointment state machine. A status not present as a
// key is terminal.
var transitions = map[string][]string{
	repository.StatusScheduled:  {repository.StatusConfirmed, repository.StatusCancelled, repository.StatusNoShow},
	repository.StatusConfirmed:  {repository.StatusWaiting, repository.StatusCancelled, repository.StatusNoShow},
	repository.StatusWaiting:    {repository.StatusInProgress, repository.StatusCancelled, repository.StatusNoShow},
	repository.StatusInProgress: {repository.StatusCompleted, repository.StatusCancelled},
}

func canTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AppointmentStore is the persistence contract of the appointment service
type AppointmentStore interface {
	List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.Appointment, int64, error)
	GetByID(ctx context.Context, id string) (*repository.Appointment, error)
	Create(ctx context.Context, appt *repository.Appointment) error
	Update(ctx context.Context, appt *repository.Appointment) error
	Transition(ctx context.Context, id, from, to string, reason *string) (*repository.Appointment, error)
	BusyIntervals(ctx context.Context, professionalID string, day time.Time) ([]repository.BusyInterval, error)
}

// AppointmentService handles appointment business logic
type AppointmentService struct {
	repo      AppointmentStore
	publisher *events.Publisher
	auditor   *audit.Recorder
	logger    *logger.Logger
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(repo AppointmentStore, publisher *events.Publisher, auditor *audit.Recorder, log *logger.Logger) *AppointmentService {
	return &AppointmentService{
		repo:      repo,
		publisher: publisher,
		auditor:   auditor,
		logger:    log,
	}
}

// List lists appointments with filters and pagination
func (s *AppointmentService) List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.Appointment, int64, error) {
	return s.repo.List(ctx, f, page, perPage)
}

// GetByID gets an appointment by id
func (s *AppointmentService) GetByID(ctx context.Context, id string) (*repository.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Create schedules a new appointment. The repository re-derives conflict
// state against existing non-cancelled appointments of the professional.
func (s *AppointmentService) Create(ctx context.Context, appt *repository.Appointment) error {
	if !appt.EndsAt.After(appt.StartsAt) {
		return errors.Validation(map[string]string{
			"ends_at": "must be after starts_at",
		})
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		return err
	}

	s.auditor.Record(ctx, "appointment.create", "appointment", appt.ID, map[string]string{
		"patient_id":      appt.PatientID,
		"professional_id": appt.ProfessionalID,
	})
	s.publisher.Publish(ctx, messaging.EventAppointmentCreated, appt)

	return nil
}

// Update reschedules an appointment's mutable fields
func (s *AppointmentService) Update(ctx context.Context, appt *repository.Appointment) error {
	if !appt.EndsAt.After(appt.StartsAt) {
		return errors.Validation(map[string]string{
			"ends_at": "must be after starts_at",
		})
	}

	if err := s.repo.Update(ctx, appt); err != nil {
		return err
	}

	s.auditor.Record(ctx, "appointment.update", "appointment", appt.ID, nil)
	return nil
}

// Confirm moves a scheduled appointment to confirmed
func (s *AppointmentService) Confirm(ctx context.Context, id string) (*repository.Appointment, error) {
	return s.transition(ctx, id, repository.StatusConfirmed, nil)
}

// CheckIn marks the patient as waiting
func (s *AppointmentService) CheckIn(ctx context.Context, id string) (*repository.Appointment, error) {
	return s.transition(ctx, id, repository.StatusWaiting, nil)
}

// Start moves a waiting appointment to in progress
func (s *AppointmentService) Start(ctx context.Context, id string) (*repository.Appointment, error) {
	return s.transition(ctx, id, repository.StatusInProgress, nil)
}

// Complete finishes an in-progress appointment
func (s *AppointmentService) Complete(ctx context.Context, id string) (*repository.Appointment, error) {
	return s.transition(ctx, id, repository.StatusCompleted, nil)
}

// Cancel cancels an appointment with an optional reason. Completed
// appointments cannot be cancelled.
func (s *AppointmentService) Cancel(ctx context.Context, id string, reason *string) (*repository.Appointment, error) {
	return s.transition(ctx, id, repository.StatusCancelled, reason)
}

// NoShow marks an appointment as a no-show
func (s *AppointmentService) NoShow(ctx context.Context, id string) (*repository.Appointment, error) {
	return s.transition(ctx, id, repository.StatusNoShow, nil)
}

func (s *AppointmentService) transition(ctx context.Context, id, to string, reason *string) (*repository.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(appt.Status, to) {
		if to == repository.StatusCancelled && appt.Status == repository.StatusCompleted {
			return nil, errors.BadRequestWithCode("CANNOT_CANCEL", "completed appointments cannot be cancelled")
		}
		return nil, errors.BadRequestWithCode("INVALID_TRANSITION",
			"cannot move appointment from "+appt.Status+" to "+to)
	}

	updated, err := s.repo.Transition(ctx, id, appt.Status, to, reason)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "appointment."+to, "appointment", id, nil)

	switch to {
	case repository.StatusConfirmed:
		s.publisher.Publish(ctx, messaging.EventAppointmentConfirmed, updated)
	case repository.StatusCancelled:
		s.publisher.Publish(ctx, messaging.EventAppointmentCancelled, updated)
	case repository.StatusCompleted:
		s.publisher.Publish(ctx, messaging.EventAppointmentCompleted, updated)
	}

	return updated, nil
}

// Availability returns the busy intervals of a professional on a day for
// client-side slot computation. Free slots are not computed server-side.
func (s *AppointmentService) Availability(ctx context.Context, professionalID string, day time.Time) ([]repository.BusyInterval, error) {
	return s.repo.BusyIntervals(ctx, professionalID, day)
}
