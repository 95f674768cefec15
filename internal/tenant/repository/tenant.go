package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
)

// Tenant statuses
const (
	StatusActive    = "active"
	StatusTrial     = "trial"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

// Tenant is an isolated clinic organization. Tenants are never hard-deleted;
// the status field carries the lifecycle.
type Tenant struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Subdomain string          `db:"subdomain" json:"subdomain"`
	Document  string          `db:"document" json:"document"`
	Status    string          `db:"status" json:"status"`
	Plan      string          `db:"plan" json:"plan"`
	Settings  json.RawMessage `db:"settings" json:"settings"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// PublicTenant is the subset exposed on the unauthenticated
// by-subdomain lookup
type PublicTenant struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Subdomain string `db:"subdomain" json:"subdomain"`
	Status    string `db:"status" json:"status"`
}

// TenantRepository handles tenant persistence. Unlike the domain
// repositories it is not tenant-scoped; access control happens in the
// guard layer.
type TenantRepository struct {
	db *database.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *database.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, subdomain, document, status, plan, settings, created_at, updated_at`

// Create registers a new tenant
func (r *TenantRepository) Create(ctx context.Context, t *Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = StatusTrial
	}
	if t.Settings == nil {
		t.Settings = json.RawMessage("{}")
	}

	query := `
		INSERT INTO tenants (id, name, subdomain, document, status, plan, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		t.ID, t.Name, t.Subdomain, t.Document, t.Status, t.Plan, []byte(t.Settings),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a tenant by id
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*Tenant, error) {
	var t Tenant
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1`, tenantColumns)

	err := r.db.GetContext(ctx, &t, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// GetBySubdomain resolves a tenant for the public login flow. Only
// non-sensitive fields are returned.
func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*PublicTenant, error) {
	var t PublicTenant
	query := `SELECT id, name, subdomain, status FROM tenants WHERE subdomain = $1`

	err := r.db.GetContext(ctx, &t, query, subdomain)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// List returns a page of tenants, newest first, optionally filtered by status
func (r *TenantRepository) List(ctx context.Context, status string, page, perPage int) ([]*Tenant, int64, error) {
	where := ""
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		where = "WHERE status = $1"
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tenants "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM tenants %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		tenantColumns, where, len(args)-1, len(args))

	tenants := []*Tenant{}
	if err := r.db.SelectContext(ctx, &tenants, query, args...); err != nil {
		return nil, 0, err
	}

	return tenants, total, nil
}

// Update updates a tenant's name and plan
func (r *TenantRepository) Update(ctx context.Context, t *Tenant) error {
	query := `
		UPDATE tenants SET name = $2, plan = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, t.ID, t.Name, t.Plan).Scan(&t.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("tenant")
	}
	return err
}

// SetStatus moves a tenant to a new lifecycle status
func (r *TenantRepository) SetStatus(ctx context.Context, id, status string) (*Tenant, error) {
	var t Tenant
	query := fmt.Sprintf(`
		UPDATE tenants SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, tenantColumns)

	err := r.db.GetContext(ctx, &t, query, id, status)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// PatchSettings merges the given keys into the tenant's settings JSON. The
// merge happens in the database so concurrent patches of different keys do
// not overwrite each other.
func (r *TenantRepository) PatchSettings(ctx context.Context, id string, patch json.RawMessage) (*Tenant, error) {
	var t Tenant
	query := fmt.Sprintf(`
		UPDATE tenants SET settings = settings || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, tenantColumns)

	err := r.db.GetContext(ctx, &t, query, id, []byte(patch))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}
