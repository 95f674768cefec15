package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// User is a staff member of a tenant. The password hash never leaves the
// repository layer in responses.
type User struct {
	ID           string         `db:"id" json:"id"`
	TenantID     string         `db:"tenant_id" json:"tenant_id"`
	Email        string         `db:"email" json:"email"`
	Name         string         `db:"name" json:"name"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Role         string         `db:"role" json:"role"`
	// ProfessionalID is the professional registry number of clinical
	// staff (CRM, COREN). Nil for non-clinical roles.
	ProfessionalID *string        `db:"professional_id" json:"professional_id,omitempty"`
	Specialties    pq.StringArray `db:"specialties" json:"specialties"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Filter narrows user listings
type Filter struct {
	Search string
	Role   string
	Active *bool
}

// UserRepository handles user persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, tenant_id, email, name, password_hash, role, professional_id, specialties, active, created_at, updated_at`

// Create registers a new user. The email is unique per tenant.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.TenantID = tenantID
	u.Active = true
	if u.Specialties == nil {
		u.Specialties = pq.StringArray{}
	}

	query := `
		INSERT INTO users (id, tenant_id, email, name, password_hash, role, professional_id, specialties, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowxContext(ctx, query,
		u.ID, u.TenantID, u.Email, u.Name, u.PasswordHash, u.Role, u.ProfessionalID, u.Specialties, u.Active,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a user by id within the tenant
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var u User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 AND tenant_id = $2`, userColumns)

	err = r.db.GetContext(ctx, &u, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// List returns a page of users ordered by name
func (r *UserRepository) List(ctx context.Context, f Filter, page, perPage int) ([]*User, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		where += " AND (name ILIKE $" + n + " OR email ILIKE $" + n + ")"
	}
	if f.Role != "" {
		args = append(args, f.Role)
		where += " AND role = $" + strconv.Itoa(len(args))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		where += " AND active = $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users "+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args))

	users := []*User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Update updates a user's name, role, professional registry and specialties
func (r *UserRepository) Update(ctx context.Context, u *User) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	if u.Specialties == nil {
		u.Specialties = pq.StringArray{}
	}

	query := `
		UPDATE users
		SET name = $3, role = $4, professional_id = $5, specialties = $6, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`
	err = r.db.QueryRowxContext(ctx, query,
		u.ID, tenantID, u.Name, u.Role, u.ProfessionalID, u.Specialties,
	).Scan(&u.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("user")
	}
	return err
}

// SetActive activates or deactivates a user
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET active = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("user")
	}
	return nil
}

// SetPassword replaces a user's password hash
func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, passwordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("user")
	}
	return nil
}

// UpdateProfile updates the caller's own name. Role and email are not
// self-serviceable.
func (r *UserRepository) UpdateProfile(ctx context.Context, id, name string) (*User, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var u User
	query := fmt.Sprintf(`
		UPDATE users SET name = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING %s`, userColumns)

	err = r.db.GetContext(ctx, &u, query, id, tenantID, name)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}
