package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appointmenthandler "github.com/clinicore/clinicore-backend/internal/appointment/handler"
	appointmentrepo "github.com/clinicore/clinicore-backend/internal/appointment/repository"
	appointmentservice "github.com/clinicore/clinicore-backend/internal/appointment/service"
	"github.com/clinicore/clinicore-backend/internal/audit"
	authhandler "github.com/clinicore/clinicore-backend/internal/auth/handler"
	"github.com/clinicore/clinicore-backend/internal/auth/jwt"
	authmiddleware "github.com/clinicore/clinicore-backend/internal/auth/middleware"
	authrepo "github.com/clinicore/clinicore-backend/internal/auth/repository"
	authservice "github.com/clinicore/clinicore-backend/internal/auth/service"
	billinghandler "github.com/clinicore/clinicore-backend/internal/billing/handler"
	billingrepo "github.com/clinicore/clinicore-backend/internal/billing/repository"
	billingservice "github.com/clinicore/clinicore-backend/internal/billing/service"
	"github.com/clinicore/clinicore-backend/internal/events"
	inventoryhandler "github.com/clinicore/clinicore-backend/internal/inventory/handler"
	inventoryrepo "github.com/clinicore/clinicore-backend/internal/inventory/repository"
	inventoryservice "github.com/clinicore/clinicore-backend/internal/inventory/service"
	medrecordhandler "github.com/clinicore/clinicore-backend/internal/medrecord/handler"
	medrecordrepo "github.com/clinicore/clinicore-backend/internal/medrecord/repository"
	medrecordservice "github.com/clinicore/clinicore-backend/internal/medrecord/service"
	patienthandler "github.com/clinicore/clinicore-backend/internal/patient/handler"
	patientrepo "github.com/clinicore/clinicore-backend/internal/patient/repository"
	patientservice "github.com/clinicore/clinicore-backend/internal/patient/service"
	"github.com/clinicore/clinicore-backend/internal/report"
	"github.com/clinicore/clinicore-backend/internal/server"
	settingshandler "github.com/clinicore/clinicore-backend/internal/settings/handler"
	settingsrepo "github.com/clinicore/clinicore-backend/internal/settings/repository"
	settingsservice "github.com/clinicore/clinicore-backend/internal/settings/service"
	tenanthandler "github.com/clinicore/clinicore-backend/internal/tenant/handler"
	tenantrepo "github.com/clinicore/clinicore-backend/internal/tenant/repository"
	tenantservice "github.com/clinicore/clinicore-backend/internal/tenant/service"
	userhandler "github.com/clinicore/clinicore-backend/internal/user/handler"
	userrepo "github.com/clinicore/clinicore-backend/internal/user/repository"
	userservice "github.com/clinicore/clinicore-backend/internal/user/service"
	"github.com/clinicore/clinicore-backend/pkg/config"
	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/messaging"
	"github.com/clinicore/clinicore-backend/pkg/ratelimit"
)

func main() {
	cfg, err := config.LoadWithValidation("clinic-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("clinic-server", cfg.Server.Environment, cfg.Log.Level)
	log.Info().Msg("starting Clinicore server")

	if cfg.Server.Environment == config.EnvDevelopment {
		httputil.SetDevelopmentMode(true)
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisClient, err := ratelimit.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create redis client")
	}
	defer redisClient.Close()

	// The broker is optional outside production: without it events are
	// dropped and the server still serves requests.
	var publisher *events.Publisher
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, domain events disabled")
		publisher = events.NewNop(log)
	} else {
		defer rmq.Close()
		publisher, err = events.NewPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	jwtManager := jwt.NewManager(&cfg.JWT)
	guard := authmiddleware.NewGuard(jwtManager)
	limiter := ratelimit.New(redisClient, &cfg.RateLimit, log)

	auditRepo := audit.NewRepository(db)
	auditor := audit.NewRecorder(auditRepo, log)

	authService := authservice.NewAuthService(
		authrepo.NewCredentialsRepository(db),
		authrepo.NewSessionRepository(db),
		jwtManager, log)

	patientService := patientservice.NewPatientService(patientrepo.NewPatientRepository(db), publisher, auditor, log)
	appointmentService := appointmentservice.NewAppointmentService(appointmentrepo.NewAppointmentRepository(db), publisher, auditor, log)
	recordService := medrecordservice.NewRecordService(medrecordrepo.NewRecordRepository(db), auditor, log)
	billingService := billingservice.NewBillingService(billingrepo.NewInvoiceRepository(db), publisher, auditor, log)
	inventoryService := inventoryservice.NewInventoryService(inventoryrepo.NewInventoryRepository(db), publisher, auditor, log)
	tenantService := tenantservice.NewTenantService(tenantrepo.NewTenantRepository(db), auditor, log)
	userService := userservice.NewUserService(userrepo.NewUserRepository(db), auditor, log)
	settingsService := settingsservice.NewSettingsService(settingsrepo.NewSettingsRepository(db), auditRepo, auditor, log)

	handlers := server.Handlers{
		Auth:        authhandler.NewAuthHandler(authService, log),
		Patient:     patienthandler.NewPatientHandler(patientService, log),
		Appointment: appointmenthandler.NewAppointmentHandler(appointmentService, log),
		Record:      medrecordhandler.NewRecordHandler(recordService, log),
		Billing:     billinghandler.NewBillingHandler(billingService, log),
		Inventory:   inventoryhandler.NewInventoryHandler(inventoryService, log),
		Tenant:      tenanthandler.NewTenantHandler(tenantService, log),
		User:        userhandler.NewUserHandler(userService, log),
		Settings:    settingshandler.NewSettingsHandler(settingsService, userService, tenantService, log),
		Report:      report.NewHandler(report.NewRepository(db), log),
	}

	health := func(r *http.Request) interface{} {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  "clinic-server",
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		return status
	}

	router := server.New(cfg, log, guard, limiter, handlers, health)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
