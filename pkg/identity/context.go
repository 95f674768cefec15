package identity

import (
	"context"
	"errors"
)

// Role names. Roles form ascending permission tiers; guards compose them
// through the Tier helpers below.
const (
	RoleSuperAdmin   = "super_admin"
	RoleTenantAdmin  = "tenant_admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
	RoleBillingAdmin = "billing_admin"
)

// ValidRoles lists every assignable role
var ValidRoles = []string{
	RoleSuperAdmin,
	RoleTenantAdmin,
	RoleDoctor,
	RoleNurse,
	RoleReceptionist,
	RoleBillingAdmin,
}

// IsValidRole reports whether role is an assignable role
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Pre-built guard tiers. Each tier admits the named role plus every role that
// supersedes it administratively.
var (
	TierAdmin        = []string{RoleSuperAdmin, RoleTenantAdmin}
	TierDoctor       = []string{RoleSuperAdmin, RoleTenantAdmin, RoleDoctor}
	TierClinical     = []string{RoleSuperAdmin, RoleTenantAdmin, RoleDoctor, RoleNurse}
	TierReceptionist = []string{RoleSuperAdmin, RoleTenantAdmin, RoleReceptionist}
	TierBilling      = []string{RoleSuperAdmin, RoleTenantAdmin, RoleBillingAdmin, RoleReceptionist}
	TierStaff        = []string{RoleSuperAdmin, RoleTenantAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RoleBillingAdmin}
)

// Identity is the authenticated caller attached to the request context by the
// auth guard.
type Identity struct {
	UserID   string
	TenantID string
	Email    string
	Name     string
	Role     string
}

// IsSuperAdmin reports whether the identity holds the superseding role
func (i *Identity) IsSuperAdmin() bool {
	return i.Role == RoleSuperAdmin
}

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	identityKey contextKey = "identity"
	tenantIDKey contextKey = "tenant_id"
)

var (
	// ErrNoIdentity is returned when no authenticated identity is in context
	ErrNoIdentity = errors.New("no identity in context")
	// ErrNoTenant is returned when no tenant id has been resolved onto the request
	ErrNoTenant = errors.New("no tenant in context")
)

// WithIdentity attaches the authenticated identity to the context, along with
// the identity's tenant id as the resolved request tenant.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	if id.TenantID != "" {
		ctx = context.WithValue(ctx, tenantIDKey, id.TenantID)
	}
	return ctx
}

// WithTenantID sets the resolved tenant id without an identity, for public
// flows where the tenant is derived from a request parameter.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// FromContext extracts the authenticated identity from the context
func FromContext(ctx context.Context) (*Identity, error) {
	id, ok := ctx.Value(identityKey).(*Identity)
	if !ok || id == nil {
		return nil, ErrNoIdentity
	}
	return id, nil
}

// TenantID extracts the resolved tenant id from the context
func TenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoTenant
	}
	return id, nil
}

// MustTenantID extracts the tenant id and panics if absent. Use only where a
// missing tenant is a programming error (behind the tenant guard).
func MustTenantID(ctx context.Context) string {
	id, err := TenantID(ctx)
	if err != nil {
		panic("tenant ID not found in context")
	}
	return id
}
