package handler

import (
	"encoding/json"
	"net/http"

	tenantservice "github.com/clinicore/clinicore-backend/internal/tenant/service"
	userservice "github.com/clinicore/clinicore-backend/internal/user/service"

	"github.com/clinicore/clinicore-backend/internal/settings/service"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// SettingsHandler handles the settings surface: profile, notification
// preferences, tenant settings, audit log and export
type SettingsHandler struct {
	settings *service.SettingsService
	users    *userservice.UserService
	tenants  *tenantservice.TenantService
	logger   *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *service.SettingsService, users *userservice.UserService, tenants *tenantservice.TenantService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		users:    users,
		tenants:  tenants,
		logger:   log,
	}
}

// Profile returns the caller's own user row
func (h *SettingsHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Profile(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, u)
}

// UpdateProfileRequest is the request body for a profile update
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2,max=200"`
}

// UpdateProfile updates the caller's own name
func (h *SettingsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), req.Name)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, u)
}

// Notifications returns the caller's notification preferences
func (h *SettingsHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.settings.NotificationPrefs(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, prefs)
}

// UpdateNotifications merges keys into the caller's notification preferences
func (h *SettingsHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, err)
		return
	}
	if len(patch) == 0 {
		httputil.Error(w, errors.Validation(map[string]string{"body": "must be a JSON object"}))
		return
	}

	prefs, err := h.settings.PatchNotificationPrefs(r.Context(), patch)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, prefs)
}

// TenantSettings returns the caller's tenant settings
func (h *SettingsHandler) TenantSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := identity.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, errors.NoTenantContext())
		return
	}

	t, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t.Settings)
}

// UpdateTenantSettings merges keys into the caller's tenant settings
func (h *SettingsHandler) UpdateTenantSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, err := identity.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, errors.NoTenantContext())
		return
	}

	var patch json.RawMessage
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, err)
		return
	}
	if len(patch) == 0 {
		httputil.Error(w, errors.Validation(map[string]string{"body": "must be a JSON object"}))
		return
	}

	t, err := h.tenants.PatchSettings(r.Context(), tenantID, patch)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t.Settings)
}

// AuditLog lists the tenant's audit entries, newest first
func (h *SettingsHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	entries, total, err := h.settings.AuditLog(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, httputil.NewMeta(page, perPage, total))
}

// Export bundles the tenant's data for download
func (h *SettingsHandler) Export(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.settings.Export(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, bundle)
}
