package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clinicore/clinicore-backend/internal/auth/jwt"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/identity"
)

// Guard builds the authentication and authorization middleware chain
type Guard struct {
	jwtManager *jwt.Manager
}

// NewGuard creates a new guard
func NewGuard(jwtManager *jwt.Manager) *Guard {
	return &Guard{jwtManager: jwtManager}
}

// Authenticate verifies the bearer token and attaches the identity and its
// tenant id to the request context. A missing token fails with NO_TOKEN, an
// expired one with TOKEN_EXPIRED and anything else with INVALID_TOKEN.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.identityFromRequest(r)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	})
}

// OptionalAuthenticate performs the same decode but proceeds unauthenticated
// on any failure, for routes that behave differently for anonymous callers.
func (g *Guard) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := g.identityFromRequest(r); err == nil {
			r = r.WithContext(identity.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) identityFromRequest(r *http.Request) (*identity.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.NoToken()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.TokenInvalid()
	}

	claims, err := g.jwtManager.ValidateAccessToken(parts[1])
	if err != nil {
		return nil, err
	}

	return &identity.Identity{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Email:    claims.Email,
		Name:     claims.Name,
		Role:     claims.Role,
	}, nil
}

// RequireRoles builds a guard that admits only identities whose role is in
// the allow-list. Compose the pre-built identity.Tier* lists for ascending
// permission tiers.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identity.FromContext(r.Context())
			if err != nil {
				httputil.Error(w, errors.Unauthorized("not authenticated"))
				return
			}

			if !allowed[id.Role] {
				httputil.Error(w, errors.InsufficientPermissions(roles, id.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenant enforces that a tenant id has been resolved onto the request
// and that the identity belongs to it. A super admin passes regardless of
// tenant match.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := identity.TenantID(r.Context())
		if err != nil {
			httputil.Error(w, errors.NoTenantContext())
			return
		}

		id, err := identity.FromContext(r.Context())
		if err != nil {
			httputil.Error(w, errors.Unauthorized("not authenticated"))
			return
		}

		if !id.IsSuperAdmin() && id.TenantID != tenantID {
			httputil.Error(w, errors.TenantAccessDenied())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ResolveTenantParam derives the tenant id to check from a path parameter
// when no identity tenant exists yet (e.g. super-admin tenant management).
// The same super-admin bypass applies: other roles must match their own
// tenant id against the parameter.
func ResolveTenantParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := chi.URLParam(r, param)
			if tenantID == "" {
				httputil.Error(w, errors.NoTenantContext())
				return
			}

			if id, err := identity.FromContext(r.Context()); err == nil {
				if !id.IsSuperAdmin() && id.TenantID != tenantID {
					httputil.Error(w, errors.TenantAccessDenied())
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(identity.WithTenantID(r.Context(), tenantID)))
		})
	}
}
