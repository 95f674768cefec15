package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// Medical record kinds
const (
	KindAnamnesis    = "anamnesis"
	KindEvolution    = "evolution"
	KindPrescription = "prescription"
	KindExamRequest  = "exam_request"
	KindCertificate  = "certificate"
	KindReferral     = "referral"
)

// Record is a clinical entry on a patient's chart. Records are append-only;
// there is no update or delete path.
type Record struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenant_id"`
	PatientID       string          `db:"patient_id" json:"patient_id"`
	AuthorID        string          `db:"author_id" json:"author_id"`
	AppointmentID   *string         `db:"appointment_id" json:"appointment_id,omitempty"`
	Kind            string          `db:"kind" json:"kind"`
	Content         json.RawMessage `db:"content" json:"content"`
	DiagnosticCodes pq.StringArray  `db:"diagnostic_codes" json:"diagnostic_codes"`
	Signature       *string         `db:"signature" json:"signature,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// RecordRepository handles medical record persistence
type RecordRepository struct {
	db *database.DB
}

// NewRecordRepository creates a new medical record repository
func NewRecordRepository(db *database.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `id, tenant_id, patient_id, author_id, appointment_id, kind, content,
	diagnostic_codes, signature, created_at, updated_at`

// Create appends a record to a patient's chart
func (r *RecordRepository) Create(ctx context.Context, rec *Record) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.TenantID = tenantID
	if rec.DiagnosticCodes == nil {
		rec.DiagnosticCodes = pq.StringArray{}
	}

	query := `
		INSERT INTO medical_records (id, tenant_id, patient_id, author_id, appointment_id, kind, content,
			diagnostic_codes, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.TenantID, rec.PatientID, rec.AuthorID, rec.AppointmentID, rec.Kind,
		[]byte(rec.Content), rec.DiagnosticCodes, rec.Signature,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a record by id within the tenant
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var rec Record
	query := fmt.Sprintf(`SELECT %s FROM medical_records WHERE id = $1 AND tenant_id = $2`, recordColumns)

	err = r.db.GetContext(ctx, &rec, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("medical record")
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListByPatient returns a patient's records, newest first, optionally
// filtered by kind
func (r *RecordRepository) ListByPatient(ctx context.Context, patientID, kind string, page, perPage int) ([]*Record, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE tenant_id = $1 AND patient_id = $2"
	args := []interface{}{tenantID, patientID}

	if kind != "" {
		args = append(args, kind)
		where += " AND kind = $3"
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM medical_records "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM medical_records %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)-1, len(args))

	records := []*Record{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
