package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/internal/auth/jwt"
	authmiddleware "github.com/clinicore/clinicore-backend/internal/auth/middleware"
	"github.com/clinicore/clinicore-backend/pkg/config"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/ratelimit"
)

func testRouter(t *testing.T) chi.Router {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Environment = config.EnvDevelopment
	log := logger.New("test", "development", "debug")
	guard := authmiddleware.NewGuard(jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret-with-enough-entropy",
		Issuer:        "clinicore-test",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: time.Hour,
	}))
	limiter := ratelimit.New(nil, &config.RateLimitConfig{Window: time.Minute, Requests: 100}, log)

	return New(cfg, log, guard, limiter, Handlers{}, func(*http.Request) interface{} {
		return map[string]string{"status": "ok"}
	})
}

// routeTable flattens the route tree into "METHOD /pattern" keys
func routeTable(t *testing.T, r chi.Router) map[string]bool {
	t.Helper()

	routes := map[string]bool{}
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if len(route) > 1 {
			route = strings.TrimSuffix(route, "/")
		}
		routes[method+" "+route] = true
		return nil
	})
	require.NoError(t, err)
	return routes
}

func TestRouterMountsUserAdministration(t *testing.T) {
	routes := routeTable(t, testRouter(t))

	for _, want := range []string{
		"GET /api/v1/users",
		"POST /api/v1/users",
		"GET /api/v1/users/{id}",
		"PATCH /api/v1/users/{id}",
		"DELETE /api/v1/users/{id}",
		"POST /api/v1/users/{id}/activate",
		"POST /api/v1/users/{id}/deactivate",
		"POST /api/v1/users/{id}/password",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestRouterMountsPublicSurface(t *testing.T) {
	routes := routeTable(t, testRouter(t))

	for _, want := range []string{
		"GET /health",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/refresh",
		"GET /api/v1/tenants/by-subdomain/{subdomain}",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}
