package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appointmenthandler "github.com/clinicore/clinicore-backend/internal/appointment/handler"
	authhandler "github.com/clinicore/clinicore-backend/internal/auth/handler"
	authmiddleware "github.com/clinicore/clinicore-backend/internal/auth/middleware"
	billinghandler "github.com/clinicore/clinicore-backend/internal/billing/handler"
	inventoryhandler "github.com/clinicore/clinicore-backend/internal/inventory/handler"
	medrecordhandler "github.com/clinicore/clinicore-backend/internal/medrecord/handler"
	patienthandler "github.com/clinicore/clinicore-backend/internal/patient/handler"
	"github.com/clinicore/clinicore-backend/internal/report"
	settingshandler "github.com/clinicore/clinicore-backend/internal/settings/handler"
	tenanthandler "github.com/clinicore/clinicore-backend/internal/tenant/handler"
	userhandler "github.com/clinicore/clinicore-backend/internal/user/handler"
	"github.com/clinicore/clinicore-backend/pkg/config"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/ratelimit"
)

// Handlers bundles every route handler the server mounts
type Handlers struct {
	Auth        *authhandler.AuthHandler
	Patient     *patienthandler.PatientHandler
	Appointment *appointmenthandler.AppointmentHandler
	Record      *medrecordhandler.RecordHandler
	Billing     *billinghandler.BillingHandler
	Inventory   *inventoryhandler.InventoryHandler
	Tenant      *tenanthandler.TenantHandler
	User        *userhandler.UserHandler
	Settings    *settingshandler.SettingsHandler
	Report      *report.Handler
}

// HealthChecker reports a component's health for the liveness probe
type HealthChecker func(r *http.Request) interface{}

// New assembles the full route tree. Guard chains follow the role tiers:
// clinical roles write charts, reception handles scheduling, billing roles
// touch invoices, admins manage users and settings.
func New(cfg *config.Config, log *logger.Logger, guard *authmiddleware.Guard, limiter *ratelimit.Limiter, h Handlers, health HealthChecker) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(corsMiddleware(cfg))
	r.Use(limiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		httputil.JSON(w, http.StatusOK, health(req))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface. Subdomain resolution attaches the caller's
		// identity when a token is present but never requires one.
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/refresh", h.Auth.Refresh)
		r.With(guard.OptionalAuthenticate).Get("/tenants/by-subdomain/{subdomain}", h.Tenant.GetBySubdomain)

		// Everything else requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(guard.Authenticate)

			r.Post("/auth/logout", h.Auth.Logout)
			r.Get("/auth/me", h.Auth.Me)

			// Tenant administration; the guard derives the tenant to check
			// from the path so a super admin can cross tenants
			r.Route("/tenants", func(r chi.Router) {
				r.With(authmiddleware.RequireRoles(identity.RoleSuperAdmin)).Get("/", h.Tenant.List)
				r.With(authmiddleware.RequireRoles(identity.RoleSuperAdmin)).Post("/", h.Tenant.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(authmiddleware.ResolveTenantParam("id"))
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Get("/", h.Tenant.Get)
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Patch("/", h.Tenant.Update)
					r.With(authmiddleware.RequireRoles(identity.RoleSuperAdmin)).Post("/status", h.Tenant.SetStatus)
				})
			})

			// Tenant-scoped domain surface
			r.Group(func(r chi.Router) {
				r.Use(authmiddleware.RequireTenant)

				r.Route("/patients", func(r chi.Router) {
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/", h.Patient.List)
					r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Post("/", h.Patient.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/", h.Patient.Get)
						r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Patch("/", h.Patient.Update)
						r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Delete("/", h.Patient.Delete)
						r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Post("/reactivate", h.Patient.Reactivate)
						r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Post("/consent", h.Patient.Consent)
						r.With(authmiddleware.RequireRoles(identity.TierClinical...)).Get("/history", h.Patient.History)
						r.With(authmiddleware.RequireRoles(identity.TierClinical...)).Get("/records", h.Record.ListByPatient)
					})
				})

				r.Route("/appointments", func(r chi.Router) {
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/", h.Appointment.List)
					r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Post("/", h.Appointment.Create)
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/professional/{id}/availability", h.Appointment.Availability)
					r.Route("/{id}", func(r chi.Router) {
						r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/", h.Appointment.Get)
						r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Patch("/", h.Appointment.Update)
						r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Post("/confirm", h.Appointment.Confirm)
						r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Post("/checkin", h.Appointment.CheckIn)
						r.With(authmiddleware.RequireRoles(identity.TierClinical...)).Post("/start", h.Appointment.Start)
						r.With(authmiddleware.RequireRoles(identity.TierClinical...)).Post("/complete", h.Appointment.Complete)
						r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Post("/cancel", h.Appointment.Cancel)
						r.With(authmiddleware.RequireRoles(identity.TierReceptionist...)).Post("/no-show", h.Appointment.NoShow)
					})
				})

				r.Route("/records", func(r chi.Router) {
					r.Use(authmiddleware.RequireRoles(identity.TierClinical...))
					r.Post("/", h.Record.Create)
					r.Get("/{id}", h.Record.Get)
				})

				r.Route("/billing", func(r chi.Router) {
					r.Use(authmiddleware.RequireRoles(identity.TierBilling...))
					r.Get("/invoices", h.Billing.List)
					r.Post("/invoices", h.Billing.Create)
					r.Get("/invoices/{id}", h.Billing.Get)
					r.Post("/invoices/{id}/pay", h.Billing.Pay)
					r.Post("/invoices/{id}/cancel", h.Billing.Cancel)
					r.Get("/summary", h.Billing.Summary)
					r.Get("/daily", h.Billing.Daily)
				})

				r.Route("/inventory", func(r chi.Router) {
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/products", h.Inventory.ListProducts)
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Post("/products", h.Inventory.CreateProduct)
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/products/{id}", h.Inventory.GetProduct)
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Patch("/products/{id}", h.Inventory.UpdateProduct)
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Post("/products/{id}/movements", h.Inventory.Move)
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/products/{id}/movements", h.Inventory.ListMovements)
					r.With(authmiddleware.RequireRoles(identity.TierStaff...)).Get("/summary", h.Inventory.Summary)
				})

				r.Route("/users", func(r chi.Router) {
					r.Use(authmiddleware.RequireRoles(identity.TierAdmin...))
					r.Get("/", h.User.List)
					r.Post("/", h.User.Create)
					r.Get("/{id}", h.User.Get)
					r.Patch("/{id}", h.User.Update)
					r.Delete("/{id}", h.User.Deactivate)
					r.Post("/{id}/activate", h.User.Activate)
					r.Post("/{id}/deactivate", h.User.Deactivate)
					r.Post("/{id}/password", h.User.SetPassword)
				})

				r.Route("/settings", func(r chi.Router) {
					r.Get("/profile", h.Settings.Profile)
					r.Patch("/profile", h.Settings.UpdateProfile)
					r.Get("/notifications", h.Settings.Notifications)
					r.Patch("/notifications", h.Settings.UpdateNotifications)
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Get("/tenant", h.Settings.TenantSettings)
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Patch("/tenant", h.Settings.UpdateTenantSettings)
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Get("/audit-log", h.Settings.AuditLog)
					r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Get("/export", h.Settings.Export)
				})

				r.With(authmiddleware.RequireRoles(identity.TierAdmin...)).Get("/reports/overview", h.Report.Overview)
			})
		})
	})

	return r
}

// corsMiddleware is permissive in development and restricted to the
// configured web origin otherwise
func corsMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	origins := []string{cfg.CORS.WebOrigin}
	if cfg.Server.Environment == config.EnvDevelopment {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
