package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/pkg/identity"
)

func TestWithIdentityCarriesTenant(t *testing.T) {
	id := &identity.Identity{UserID: "u1", TenantID: "t1", Role: identity.RoleDoctor}
	ctx := identity.WithIdentity(context.Background(), id)

	got, err := identity.FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	tenantID, err := identity.TenantID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", tenantID)
}

func TestSuperAdminIdentityHasNoTenant(t *testing.T) {
	id := &identity.Identity{UserID: "u1", Role: identity.RoleSuperAdmin}
	ctx := identity.WithIdentity(context.Background(), id)

	_, err := identity.TenantID(ctx)
	assert.ErrorIs(t, err, identity.ErrNoTenant)
}

func TestFromContextEmpty(t *testing.T) {
	_, err := identity.FromContext(context.Background())
	assert.ErrorIs(t, err, identity.ErrNoIdentity)
}

func TestWithTenantIDWithoutIdentity(t *testing.T) {
	ctx := identity.WithTenantID(context.Background(), "t9")

	tenantID, err := identity.TenantID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t9", tenantID)

	_, err = identity.FromContext(ctx)
	assert.ErrorIs(t, err, identity.ErrNoIdentity)
}

func TestIsValidRole(t *testing.T) {
	for _, role := range identity.ValidRoles {
		assert.True(t, identity.IsValidRole(role), role)
	}
	assert.False(t, identity.IsValidRole("janitor"))
}

func TestTiersIncludeAdmins(t *testing.T) {
	tiers := [][]string{
		identity.TierAdmin,
		identity.TierDoctor,
		identity.TierClinical,
		identity.TierReceptionist,
		identity.TierBilling,
		identity.TierStaff,
	}

	for _, tier := range tiers {
		assert.Contains(t, tier, identity.RoleSuperAdmin)
		assert.Contains(t, tier, identity.RoleTenantAdmin)
	}
}

func TestMustTenantIDPanicsWithoutTenant(t *testing.T) {
	assert.Panics(t, func() {
		identity.MustTenantID(context.Background())
	})
}
