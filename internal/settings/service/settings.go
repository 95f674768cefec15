package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// SettingsStore is the persistence contract of the settings service
type SettingsStore interface {
	NotificationPrefs(ctx context.Context, userID string) (json.RawMessage, error)
	PatchNotificationPrefs(ctx context.Context, userID string, patch json.RawMessage) (json.RawMessage, error)
	Export(ctx context.Context) (map[string]json.RawMessage, error)
}

// AuditLister lists a tenant's audit entries
type AuditLister interface {
	List(ctx context.Context, page, perPage int) ([]*audit.Entry, int64, error)
}

// ExportBundle is the downloadable tenant data bundle
type ExportBundle struct {
	TenantID    string                     `json:"tenant_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Collections map[string]json.RawMessage `json:"collections"`
}

// SettingsService handles user preferences, audit log access and data export
type SettingsService struct {
	repo    SettingsStore
	audits  AuditLister
	auditor *audit.Recorder
	logger  *logger.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo SettingsStore, audits AuditLister, auditor *audit.Recorder, log *logger.Logger) *SettingsService {
	return &SettingsService{
		repo:    repo,
		audits:  audits,
		auditor: auditor,
		logger:  log,
	}
}

// NotificationPrefs returns the caller's notification preferences
func (s *SettingsService) NotificationPrefs(ctx context.Context) (json.RawMessage, error) {
	id, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.NotificationPrefs(ctx, id.UserID)
}

// PatchNotificationPrefs merges keys into the caller's notification
// preferences
func (s *SettingsService) PatchNotificationPrefs(ctx context.Context, patch json.RawMessage) (json.RawMessage, error) {
	id, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	prefs, err := s.repo.PatchNotificationPrefs(ctx, id.UserID, patch)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "settings.notifications.update", "user", id.UserID, nil)
	return prefs, nil
}

// AuditLog lists the tenant's audit entries, newest first
func (s *SettingsService) AuditLog(ctx context.Context, page, perPage int) ([]*audit.Entry, int64, error) {
	return s.audits.List(ctx, page, perPage)
}

// Export bundles the tenant's data for download
func (s *SettingsService) Export(ctx context.Context) (*ExportBundle, error) {
	tenantID, err := identity.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	collections, err := s.repo.Export(ctx)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "settings.export", "tenant", tenantID, nil)

	return &ExportBundle{
		TenantID:    tenantID,
		GeneratedAt: time.Now().UTC(),
		Collections: collections,
	}, nil
}
