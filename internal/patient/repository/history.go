package repository

import (
	"context"
	"time"

	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// HistoryAppointment is the appointment slice of a patient's history
type HistoryAppointment struct {
	ID             string    `db:"id" json:"id"`
	ProfessionalID string    `db:"professional_id" json:"professional_id"`
	StartsAt       time.Time `db:"starts_at" json:"starts_at"`
	EndsAt         time.Time `db:"ends_at" json:"ends_at"`
	Status         string    `db:"status" json:"status"`
}

// HistoryRecord is the medical-record slice of a patient's history
type HistoryRecord struct {
	ID        string    `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// History bundles a patient's appointments and medical records
type History struct {
	Patient      *Patient             `json:"patient"`
	Appointments []HistoryAppointment `json:"appointments"`
	Records      []HistoryRecord      `json:"records"`
}

// History returns the patient's appointments and medical records, newest
// first. The patient lookup doubles as the existence check.
func (r *PatientRepository) History(ctx context.Context, id string) (*History, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	h := &History{
		Patient:      p,
		Appointments: []HistoryAppointment{},
		Records:      []HistoryRecord{},
	}

	apptQuery := `
		SELECT id, professional_id, starts_at, ends_at, status
		FROM appointments
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY starts_at DESC
	`
	if err := r.db.SelectContext(ctx, &h.Appointments, apptQuery, tenantID, id); err != nil {
		return nil, err
	}

	recordQuery := `
		SELECT id, kind, author_id, created_at
		FROM medical_records
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &h.Records, recordQuery, tenantID, id); err != nil {
		return nil, err
	}

	return h, nil
}
