package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/internal/auth/jwt"
	"github.com/clinicore/clinicore-backend/internal/auth/middleware"
	"github.com/clinicore/clinicore-backend/pkg/config"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/testutil"
)

func newManager(accessExpiry time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret-with-enough-entropy",
		Issuer:        "clinicore-test",
		AccessExpiry:  accessExpiry,
		RefreshExpiry: 24 * time.Hour,
	})
}

func accessToken(t *testing.T, m *jwt.Manager, user *jwt.UserInfo) string {
	t.Helper()
	pair, err := m.GenerateTokenPair(user, "session-1")
	require.NoError(t, err)
	return pair.AccessToken
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// identityEcho asserts the guard attached an identity and writes its role
func identityEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.FromContext(r.Context())
		require.NoError(t, err)
		w.Write([]byte(id.Role))
	})
}

func TestAuthenticateMissingToken(t *testing.T) {
	guard := middleware.NewGuard(newManager(15 * time.Minute))
	handler := guard.Authenticate(okHandler())

	rr := testutil.ExecuteRequest(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertBodyContains(t, rr, "NO_TOKEN")
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	guard := middleware.NewGuard(newManager(15 * time.Minute))
	handler := guard.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertBodyContains(t, rr, "INVALID_TOKEN")
}

func TestAuthenticateGarbageToken(t *testing.T) {
	guard := middleware.NewGuard(newManager(15 * time.Minute))
	handler := guard.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertBodyContains(t, rr, "INVALID_TOKEN")
}

func TestAuthenticateExpiredToken(t *testing.T) {
	expired := newManager(-time.Minute)
	token := accessToken(t, expired, &jwt.UserInfo{ID: "u1", TenantID: "t1", Role: identity.RoleDoctor})

	guard := middleware.NewGuard(newManager(15 * time.Minute))
	handler := guard.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertBodyContains(t, rr, "TOKEN_EXPIRED")
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	manager := newManager(15 * time.Minute)
	token := accessToken(t, manager, &jwt.UserInfo{
		ID:       "u1",
		TenantID: "t1",
		Email:    "doctor@demo.clinicore.dev",
		Name:     "Dr Demo",
		Role:     identity.RoleDoctor,
	})

	guard := middleware.NewGuard(manager)
	handler := guard.Authenticate(identityEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, identity.RoleDoctor, rr.Body.String())
}

func TestOptionalAuthenticateAnonymousPassesThrough(t *testing.T) {
	guard := middleware.NewGuard(newManager(15 * time.Minute))
	handler := guard.OptionalAuthenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := identity.FromContext(r.Context())
		assert.Error(t, err)
		w.WriteHeader(http.StatusOK)
	}))

	rr := testutil.ExecuteRequest(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestOptionalAuthenticateIgnoresBadToken(t *testing.T) {
	guard := middleware.NewGuard(newManager(15 * time.Minute))
	handler := guard.OptionalAuthenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestOptionalAuthenticateAttachesIdentity(t *testing.T) {
	manager := newManager(15 * time.Minute)
	token := accessToken(t, manager, &jwt.UserInfo{ID: "u1", TenantID: "t1", Role: identity.RoleDoctor})

	guard := middleware.NewGuard(manager)
	handler := guard.OptionalAuthenticate(identityEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, identity.RoleDoctor, rr.Body.String())
}

func TestRequireRolesDeniesOutsider(t *testing.T) {
	handler := middleware.RequireRoles(identity.TierAdmin...)(okHandler())

	req := testutil.WithIdentity(
		httptest.NewRequest(http.MethodGet, "/", nil),
		testutil.Staff("t1", identity.RoleReceptionist),
	)
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertBodyContains(t, rr, "INSUFFICIENT_PERMISSIONS")
	testutil.AssertBodyContains(t, rr, "userRole")
	testutil.AssertBodyContains(t, rr, identity.RoleReceptionist)
}

func TestRequireRolesAdmitsTierMember(t *testing.T) {
	handler := middleware.RequireRoles(identity.TierClinical...)(okHandler())

	for _, role := range []string{identity.RoleDoctor, identity.RoleNurse, identity.RoleTenantAdmin} {
		req := testutil.WithIdentity(
			httptest.NewRequest(http.MethodGet, "/", nil),
			testutil.Staff("t1", role),
		)
		rr := testutil.ExecuteRequest(handler, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	}
}

func TestRequireRolesWithoutIdentity(t *testing.T) {
	handler := middleware.RequireRoles(identity.TierStaff...)(okHandler())

	rr := testutil.ExecuteRequest(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertBodyContains(t, rr, "UNAUTHORIZED")
}

func TestRequireTenantWithoutContext(t *testing.T) {
	handler := middleware.RequireTenant(okHandler())

	rr := testutil.ExecuteRequest(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertBodyContains(t, rr, "NO_TENANT_CONTEXT")
}

func TestRequireTenantMatchingIdentity(t *testing.T) {
	handler := middleware.RequireTenant(okHandler())

	req := testutil.WithIdentity(
		httptest.NewRequest(http.MethodGet, "/", nil),
		testutil.Staff("t1", identity.RoleDoctor),
	)
	rr := testutil.ExecuteRequest(handler, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestResolveTenantParamMismatch(t *testing.T) {
	r := chi.NewRouter()
	r.With(middleware.ResolveTenantParam("tenantID")).
		Get("/tenants/{tenantID}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

	req := testutil.WithIdentity(
		httptest.NewRequest(http.MethodGet, "/tenants/t2", nil),
		testutil.Staff("t1", identity.RoleTenantAdmin),
	)
	rr := testutil.ExecuteRequest(r, req)

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertBodyContains(t, rr, "TENANT_ACCESS_DENIED")
}

func TestResolveTenantParamSuperAdminBypass(t *testing.T) {
	r := chi.NewRouter()
	r.With(middleware.ResolveTenantParam("tenantID")).
		Get("/tenants/{tenantID}", func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := identity.TenantID(r.Context())
			require.NoError(t, err)
			w.Write([]byte(tenantID))
		})

	super := testutil.Staff("", identity.RoleSuperAdmin)
	req := testutil.WithIdentity(httptest.NewRequest(http.MethodGet, "/tenants/t2", nil), super)
	rr := testutil.ExecuteRequest(r, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "t2", rr.Body.String())
}
