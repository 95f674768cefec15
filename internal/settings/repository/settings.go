package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// SettingsRepository handles per-user preference persistence and data export
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// NotificationPrefs returns a user's notification preferences JSON
func (r *SettingsRepository) NotificationPrefs(ctx context.Context, userID string) (json.RawMessage, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var prefs []byte
	err = r.db.GetContext(ctx, &prefs,
		`SELECT notification_prefs FROM users WHERE id = $1 AND tenant_id = $2`,
		userID, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	return prefs, nil
}

// PatchNotificationPrefs merges keys into a user's notification preferences.
// The merge runs in the database so concurrent patches of different keys do
// not overwrite each other.
func (r *SettingsRepository) PatchNotificationPrefs(ctx context.Context, userID string, patch json.RawMessage) (json.RawMessage, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var prefs []byte
	err = r.db.GetContext(ctx, &prefs,
		`UPDATE users SET notification_prefs = notification_prefs || $3::jsonb, updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING notification_prefs`,
		userID, tenantID, []byte(patch))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	return prefs, nil
}

// exportCollections maps export keys to their tenant-scoped tables
var exportCollections = map[string]string{
	"patients":     "patients",
	"appointments": "appointments",
	"invoices":     "invoices",
	"products":     "products",
	"users":        "users",
}

// Export bundles the tenant's data as raw JSON per collection. Password
// hashes are stripped from the user rows.
func (r *SettingsRepository) Export(ctx context.Context) (map[string]json.RawMessage, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	bundle := make(map[string]json.RawMessage, len(exportCollections))
	for key, table := range exportCollections {
		query := `SELECT COALESCE(json_agg(t), '[]'::json) FROM ` + table + ` t WHERE tenant_id = $1`
		if table == "users" {
			query = `SELECT COALESCE(json_agg(row_to_json(t)::jsonb - 'password_hash'), '[]'::json)
				 FROM users t WHERE tenant_id = $1`
		}

		var raw []byte
		if err := r.db.GetContext(ctx, &raw, query, tenantID); err != nil {
			return nil, err
		}
		bundle[key] = raw
	}

	return bundle, nil
}
