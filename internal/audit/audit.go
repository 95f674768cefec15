package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// Entry is an append-only audit log record
type Entry struct {
	ID         string          `db:"id" json:"id"`
	TenantID   string          `db:"tenant_id" json:"tenant_id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Detail     json.RawMessage `db:"detail" json:"detail,omitempty"`
	IPAddress  *string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  *string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Repository handles audit log persistence. Entries are write-only; there is
// no update or delete path.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new audit repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends an audit entry
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO audit_log (id, tenant_id, user_id, action, entity_type, entity_id, detail, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		e.ID, e.TenantID, e.UserID, e.Action, e.EntityType, e.EntityID, e.Detail, e.IPAddress, e.UserAgent,
	).Scan(&e.CreatedAt)
}

// List returns a page of audit entries for the tenant, newest first
func (r *Repository) List(ctx context.Context, page, perPage int) ([]*Entry, int64, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM audit_log WHERE tenant_id = $1`, tenantID); err != nil {
		return nil, 0, err
	}

	entries := []*Entry{}
	query := `
		SELECT id, tenant_id, user_id, action, entity_type, entity_id, detail, ip_address, user_agent, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &entries, query, tenantID, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Recorder writes audit entries on behalf of domain services. Failures are
// logged but never fail the calling operation.
type Recorder struct {
	repo   *Repository
	logger *logger.Logger
}

// NewRecorder creates a new audit recorder. A nil repository disables
// recording.
func NewRecorder(repo *Repository, log *logger.Logger) *Recorder {
	return &Recorder{repo: repo, logger: log}
}

// Record appends an audit entry derived from the request context
func (rec *Recorder) Record(ctx context.Context, action, entityType, entityID string, detail interface{}) {
	if rec.repo == nil {
		return
	}

	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		rec.logger.Warn().Str("action", action).Msg("audit entry without tenant context dropped")
		return
	}

	entry := &Entry{
		TenantID:   tenantID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if id, err := identity.FromContext(ctx); err == nil {
		entry.UserID = &id.UserID
	}

	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			entry.Detail = raw
		}
	}

	if err := rec.repo.Insert(ctx, entry); err != nil {
		rec.logger.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}
