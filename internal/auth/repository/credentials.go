package repository

import (
	"context"
	"database/sql"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
)

// Credentials is the minimal user projection needed to authenticate
type Credentials struct {
	UserID       string `db:"id"`
	TenantID     string `db:"tenant_id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	Role         string `db:"role"`
	PasswordHash string `db:"password_hash"`
	Active       bool   `db:"active"`
	TenantStatus string `db:"tenant_status"`
}

// CredentialsRepository resolves login credentials. Email is unique per
// tenant, so the same address may exist under several tenants; the optional
// subdomain disambiguates.
type CredentialsRepository struct {
	db *database.DB
}

// NewCredentialsRepository creates a new credentials repository
func NewCredentialsRepository(db *database.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// GetByEmail looks up credentials by email, optionally scoped to a tenant
// subdomain. Ambiguous matches across tenants without a subdomain are
// rejected so the caller can prompt for one.
func (r *CredentialsRepository) GetByEmail(ctx context.Context, email, subdomain string) (*Credentials, error) {
	query := `
		SELECT u.id, u.tenant_id, u.email, u.name, u.role, u.password_hash, u.active,
		       t.status AS tenant_status
		FROM users u
		JOIN tenants t ON t.id = u.tenant_id
		WHERE u.email = $1
	`
	args := []interface{}{email}

	if subdomain != "" {
		query += ` AND t.subdomain = $2`
		args = append(args, subdomain)
	}

	var creds []Credentials
	if err := r.db.SelectContext(ctx, &creds, query, args...); err != nil {
		return nil, err
	}

	switch len(creds) {
	case 0:
		return nil, sql.ErrNoRows
	case 1:
		return &creds[0], nil
	default:
		return nil, errors.BadRequestWithCode("AMBIGUOUS_LOGIN", "email exists under multiple clinics, specify a subdomain")
	}
}

// GetByID looks up the authenticating projection by user id, for refresh
func (r *CredentialsRepository) GetByID(ctx context.Context, userID string) (*Credentials, error) {
	var c Credentials
	query := `
		SELECT u.id, u.tenant_id, u.email, u.name, u.role, u.password_hash, u.active,
		       t.status AS tenant_status
		FROM users u
		JOIN tenants t ON t.id = u.tenant_id
		WHERE u.id = $1
	`
	if err := r.db.GetContext(ctx, &c, query, userID); err != nil {
		return nil, err
	}
	return &c, nil
}
