package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// Appointment statuses
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

// Appointment represents a scheduled appointment
type Appointment struct {
	ID                 string     `db:"id" json:"id"`
	TenantID           string     `db:"tenant_id" json:"tenant_id"`
	PatientID          string     `db:"patient_id" json:"patient_id"`
	ProfessionalID     string     `db:"professional_id" json:"professional_id"`
	RoomID             *string    `db:"room_id" json:"room_id,omitempty"`
	StartsAt           time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt             time.Time  `db:"ends_at" json:"ends_at"`
	Status             string     `db:"status" json:"status"`
	Notes              *string    `db:"notes" json:"notes,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CheckedInAt        *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	StartedAt          *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Filter narrows appointment listings
type Filter struct {
	ProfessionalID string
	PatientID      string
	Status         string
	From           *time.Time
	To             *time.Time
}

// BusyInterval is an occupied [start,end) slot of a professional
type BusyInterval struct {
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
	EndsAt   time.Time `db:"ends_at" json:"ends_at"`
}

// AppointmentRepository handles appointment persistence. Every query is
// tenant-scoped through the tenant id resolved on the context.
type AppointmentRepository struct {
	db *database.DB
}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository(db *database.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `id, tenant_id, patient_id, professional_id, room_id, starts_at, ends_at,
	status, notes, cancellation_reason, confirmed_at, checked_in_at, started_at, completed_at, cancelled_at,
	created_at, updated_at`

// List returns a page of appointments ordered by start time ascending
func (r *AppointmentRepository) List(ctx context.Context, f Filter, page, perPage int) ([]*Appointment, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if f.ProfessionalID != "" {
		args = append(args, f.ProfessionalID)
		where += " AND professional_id = $" + strconv.Itoa(len(args))
	}
	if f.PatientID != "" {
		args = append(args, f.PatientID)
		where += " AND patient_id = $" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += " AND starts_at >= $" + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += " AND starts_at < $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM appointments "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM appointments %s ORDER BY starts_at ASC LIMIT $%d OFFSET $%d`,
		appointmentColumns, where, len(args)-1, len(args))

	appointments := []*Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, err
	}

	return appointments, total, nil
}

// GetByID gets an appointment by id. A row belonging to another tenant is
// indistinguishable from a missing one.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var appt Appointment
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1 AND tenant_id = $2`, appointmentColumns)

	err = r.db.GetContext(ctx, &appt, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("appointment")
	}
	if err != nil {
		return nil, err
	}

	return &appt, nil
}

// Create inserts the appointment after re-checking for an overlapping
// non-cancelled appointment of the same professional. Check and insert run
// in one transaction so concurrent creates serialize instead of racing.
func (r *AppointmentRepository) Create(ctx context.Context, appt *Appointment) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	appt.TenantID = tenantID
	if appt.Status == "" {
		appt.Status = StatusScheduled
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// Serialize concurrent creates for the same professional so two
		// requests cannot both pass the overlap check.
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
			tenantID, appt.ProfessionalID); err != nil {
			return err
		}

		var conflict bool
		overlapQuery := `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE tenant_id = $1
				  AND professional_id = $2
				  AND status NOT IN ('cancelled', 'no_show')
				  AND starts_at < $4
				  AND ends_at > $3
			)
		`
		if err := tx.GetContext(ctx, &conflict, overlapQuery,
			tenantID, appt.ProfessionalID, appt.StartsAt, appt.EndsAt); err != nil {
			return err
		}
		if conflict {
			return errors.ConflictWithCode("APPOINTMENT_CONFLICT", "professional already has an appointment in this interval")
		}

		insertQuery := `
			INSERT INTO appointments (id, tenant_id, patient_id, professional_id, room_id, starts_at, ends_at, status, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		return tx.QueryRowxContext(ctx, insertQuery,
			appt.ID, appt.TenantID, appt.PatientID, appt.ProfessionalID, appt.RoomID,
			appt.StartsAt, appt.EndsAt, appt.Status, appt.Notes,
		).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	})
}

// Update updates the mutable scheduling fields of an appointment
func (r *AppointmentRepository) Update(ctx context.Context, appt *Appointment) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE appointments
		SET patient_id = $3, professional_id = $4, room_id = $5, starts_at = $6, ends_at = $7, notes = $8,
		    updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	err = r.db.QueryRowxContext(ctx, query,
		appt.ID, tenantID, appt.PatientID, appt.ProfessionalID, appt.RoomID,
		appt.StartsAt, appt.EndsAt, appt.Notes,
	).Scan(&appt.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("appointment")
	}
	return err
}

// Transition moves an appointment from one status to another, stamping the
// transition timestamp column and persisting the cancellation reason when
// provided. The update only matches a row still in the from status, so a
// transition that raced a concurrent one loses instead of overwriting it.
func (r *AppointmentRepository) Transition(ctx context.Context, id, from, to string, reason *string) (*Appointment, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	stamp := stampColumn(to)
	set := "status = $3, updated_at = NOW()"
	if stamp != "" {
		set += ", " + stamp + " = NOW()"
	}

	args := []interface{}{id, tenantID, to}
	if to == StatusCancelled {
		args = append(args, reason)
		set += ", cancellation_reason = $4"
	}
	args = append(args, from)

	query := fmt.Sprintf(`UPDATE appointments SET %s WHERE id = $1 AND tenant_id = $2 AND status = $%d RETURNING %s`,
		set, len(args), appointmentColumns)

	var appt Appointment
	err = r.db.GetContext(ctx, &appt, query, args...)
	if err == sql.ErrNoRows {
		return nil, r.transitionFailure(ctx, id, to)
	}
	if err != nil {
		return nil, err
	}

	return &appt, nil
}

// transitionFailure re-reads the row to tell a missing appointment apart
// from one whose status moved between the caller's read and the update.
func (r *AppointmentRepository) transitionFailure(ctx context.Context, id, to string) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if to == StatusCancelled && current.Status == StatusCompleted {
		return errors.BadRequestWithCode("CANNOT_CANCEL", "completed appointments cannot be cancelled")
	}
	return errors.BadRequestWithCode("INVALID_TRANSITION",
		"cannot move appointment from "+current.Status+" to "+to)
}

// BusyIntervals returns the occupied intervals of a professional on the
// given day, excluding cancelled and no-show appointments.
func (r *AppointmentRepository) BusyIntervals(ctx context.Context, professionalID string, day time.Time) ([]BusyInterval, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	intervals := []BusyInterval{}
	query := `
		SELECT starts_at, ends_at
		FROM appointments
		WHERE tenant_id = $1
		  AND professional_id = $2
		  AND status NOT IN ('cancelled', 'no_show')
		  AND starts_at < $4
		  AND ends_at > $3
		ORDER BY starts_at ASC
	`
	if err := r.db.SelectContext(ctx, &intervals, query, tenantID, professionalID, dayStart, dayEnd); err != nil {
		return nil, err
	}

	return intervals, nil
}

// stampColumn maps a target status to its transition timestamp column
func stampColumn(status string) string {
	switch status {
	case StatusConfirmed:
		return "confirmed_at"
	case StatusWaiting:
		return "checked_in_at"
	case StatusInProgress:
		return "started_at"
	case StatusCompleted:
		return "completed_at"
	case StatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}
