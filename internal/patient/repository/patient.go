package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// Patient represents a clinic patient. Patients are soft-deleted by flipping
// the active flag; rows are never removed.
type Patient struct {
	ID         string     `db:"id" json:"id"`
	TenantID   string     `db:"tenant_id" json:"tenant_id"`
	FullName   string     `db:"full_name" json:"full_name"`
	Document   string     `db:"document" json:"document"`
	BirthDate  time.Time  `db:"birth_date" json:"birth_date"`
	Gender     *string    `db:"gender" json:"gender,omitempty"`
	Email      *string    `db:"email" json:"email,omitempty"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	Address    *string    `db:"address" json:"address,omitempty"`
	HealthPlan *string    `db:"health_plan" json:"health_plan,omitempty"`
	Consent    bool       `db:"consent" json:"consent"`
	ConsentAt  *time.Time `db:"consent_at" json:"consent_at,omitempty"`
	Active     bool       `db:"active" json:"active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Filter narrows patient listings
type Filter struct {
	Search     string
	Active     *bool
	HealthPlan string
}

// PatientRepository handles patient persistence
type PatientRepository struct {
	db *database.DB
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *database.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

const patientColumns = `id, tenant_id, full_name, document, birth_date, gender, email, phone, address,
	health_plan, consent, consent_at, active, created_at, updated_at`

// Create creates a new patient. A duplicate document within the tenant
// fails with PATIENT_EXISTS; the same document under another tenant is fine.
func (r *PatientRepository) Create(ctx context.Context, p *Patient) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.TenantID = tenantID
	p.Active = true

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE tenant_id = $1 AND document = $2)`,
		tenantID, p.Document); err != nil {
		return err
	}
	if exists {
		return errors.ConflictWithCode("PATIENT_EXISTS", "a patient with this document already exists")
	}

	query := `
		INSERT INTO patients (id, tenant_id, full_name, document, birth_date, gender, email, phone, address,
			health_plan, consent, consent_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowxContext(ctx, query,
		p.ID, p.TenantID, p.FullName, p.Document, p.BirthDate, p.Gender, p.Email, p.Phone, p.Address,
		p.HealthPlan, p.Consent, p.ConsentAt, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			// Unique index on (tenant_id, document) backs up the pre-check
			return errors.ConflictWithCode("PATIENT_EXISTS", "a patient with this document already exists")
		}
		return err
	}

	return nil
}

// GetByID gets a patient by id within the tenant
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var p Patient
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE id = $1 AND tenant_id = $2`, patientColumns)

	err = r.db.GetContext(ctx, &p, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("patient")
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// List returns a page of patients ordered by full name
func (r *PatientRepository) List(ctx context.Context, f Filter, page, perPage int) ([]*Patient, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		where += " AND (full_name ILIKE $" + n + " OR document ILIKE $" + n + ")"
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where += " AND active = $" + strconv.Itoa(len(args))
	}
	if f.HealthPlan != "" {
		args = append(args, f.HealthPlan)
		where += " AND health_plan = $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patients "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM patients %s ORDER BY full_name ASC LIMIT $%d OFFSET $%d`,
		patientColumns, where, len(args)-1, len(args))

	patients := []*Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, err
	}

	return patients, total, nil
}

// Update updates the mutable fields of a patient
func (r *PatientRepository) Update(ctx context.Context, p *Patient) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE patients
		SET full_name = $3, birth_date = $4, gender = $5, email = $6, phone = $7, address = $8,
		    health_plan = $9, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	err = r.db.QueryRowxContext(ctx, query,
		p.ID, tenantID, p.FullName, p.BirthDate, p.Gender, p.Email, p.Phone, p.Address, p.HealthPlan,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("patient")
	}
	return err
}

// SetActive flips the soft-delete flag
func (r *PatientRepository) SetActive(ctx context.Context, id string, active bool) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE patients SET active = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("patient")
	}
	return nil
}

// SetConsent records the patient's privacy consent flag and timestamp
func (r *PatientRepository) SetConsent(ctx context.Context, id string, consent bool) (*Patient, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var p Patient
	query := fmt.Sprintf(`
		UPDATE patients
		SET consent = $3, consent_at = CASE WHEN $3 THEN NOW() ELSE NULL END, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING %s`, patientColumns)

	err = r.db.GetContext(ctx, &p, query, id, tenantID, consent)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("patient")
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}
