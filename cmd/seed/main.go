package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/crypto/bcrypt"

	appointmentrepo "github.com/clinicore/clinicore-backend/internal/appointment/repository"
	billingrepo "github.com/clinicore/clinicore-backend/internal/billing/repository"
	inventoryrepo "github.com/clinicore/clinicore-backend/internal/inventory/repository"
	patientrepo "github.com/clinicore/clinicore-backend/internal/patient/repository"
	tenantrepo "github.com/clinicore/clinicore-backend/internal/tenant/repository"
	userrepo "github.com/clinicore/clinicore-backend/internal/user/repository"
	"github.com/clinicore/clinicore-backend/pkg/config"
	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// Seeds a demo tenant with staff, patients, appointments, products and
// invoices. Run against an empty migrated database.
func main() {
	var (
		patients = flag.Int("patients", 50, "number of patients to create")
		products = flag.Int("products", 20, "number of products to create")
		password = flag.String("password", "clinicore123", "password for all seeded users")
	)
	flag.Parse()

	cfg, err := config.Load("clinic-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("seed", cfg.Server.Environment, cfg.Log.Level)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	faker := gofakeit.New(0)

	tenants := tenantrepo.NewTenantRepository(db)
	tenant := &tenantrepo.Tenant{
		Name:      "Demo Clinic",
		Subdomain: "demo",
		Document:  faker.Numerify("##.###.###/0001-##"),
		Status:    tenantrepo.StatusActive,
		Plan:      "standard",
	}
	if err := tenants.Create(ctx, tenant); err != nil {
		log.Fatal().Err(err).Msg("failed to create tenant")
	}
	log.Info().Str("tenant_id", tenant.ID).Str("subdomain", tenant.Subdomain).Msg("tenant created")

	// Domain repositories scope everything by the tenant on the context
	ctx = identity.WithTenantID(ctx, tenant.ID)

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash password")
	}

	users := userrepo.NewUserRepository(db)
	crm := "CRM/SP 123456"
	staff := []*userrepo.User{
		{Email: "admin@demo.clinicore.dev", Name: "Demo Admin", Role: identity.RoleTenantAdmin},
		{Email: "doctor@demo.clinicore.dev", Name: faker.Name(), Role: identity.RoleDoctor, ProfessionalID: &crm, Specialties: []string{"general_practice"}},
		{Email: "nurse@demo.clinicore.dev", Name: faker.Name(), Role: identity.RoleNurse},
		{Email: "reception@demo.clinicore.dev", Name: faker.Name(), Role: identity.RoleReceptionist},
		{Email: "billing@demo.clinicore.dev", Name: faker.Name(), Role: identity.RoleBillingAdmin},
	}
	for _, u := range staff {
		u.PasswordHash = string(hash)
		if err := users.Create(ctx, u); err != nil {
			log.Fatal().Err(err).Str("email", u.Email).Msg("failed to create user")
		}
	}
	doctor := staff[1]
	log.Info().Int("count", len(staff)).Msg("staff created")

	patientsRepo := patientrepo.NewPatientRepository(db)
	created := make([]*patientrepo.Patient, 0, *patients)
	for i := 0; i < *patients; i++ {
		phone := faker.Phone()
		email := faker.Email()
		p := &patientrepo.Patient{
			FullName:  faker.Name(),
			Document:  faker.Numerify("###.###.###-##"),
			BirthDate: faker.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-18, 0, 0)),
			Phone:     &phone,
			Email:     &email,
			Consent:   true,
		}
		now := time.Now()
		p.ConsentAt = &now
		if err := patientsRepo.Create(ctx, p); err != nil {
			log.Fatal().Err(err).Msg("failed to create patient")
		}
		created = append(created, p)
	}
	log.Info().Int("count", len(created)).Msg("patients created")

	appointments := appointmentrepo.NewAppointmentRepository(db)
	slot := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	for i := 0; i < 20 && i < len(created); i++ {
		appt := &appointmentrepo.Appointment{
			PatientID:      created[i].ID,
			ProfessionalID: doctor.ID,
			StartsAt:       slot,
			EndsAt:         slot.Add(30 * time.Minute),
		}
		if err := appointments.Create(ctx, appt); err != nil {
			log.Fatal().Err(err).Msg("failed to create appointment")
		}
		slot = slot.Add(time.Hour)
	}
	log.Info().Msg("appointments created")

	inventory := inventoryrepo.NewInventoryRepository(db)
	for i := 0; i < *products; i++ {
		p := &inventoryrepo.Product{
			SKU:          faker.Numerify("SKU-######"),
			Name:         faker.ProductName(),
			Unit:         "unit",
			MinStock:     5,
			CurrentStock: faker.Number(0, 200),
			PriceCents:   int64(faker.Number(100, 50000)),
		}
		if err := inventory.CreateProduct(ctx, p); err != nil {
			log.Fatal().Err(err).Msg("failed to create product")
		}
	}
	log.Info().Int("count", *products).Msg("products created")

	invoices := billingrepo.NewInvoiceRepository(db)
	for i := 0; i < 10 && i < len(created); i++ {
		inv := &billingrepo.Invoice{
			PatientID: created[i].ID,
			DueDate:   time.Now().AddDate(0, 0, faker.Number(5, 30)),
			Items: []billingrepo.Item{
				{Description: "Consultation", Quantity: 1, UnitPriceCents: 25000},
			},
		}
		if err := invoices.Create(ctx, inv); err != nil {
			log.Fatal().Err(err).Msg("failed to create invoice")
		}
	}
	log.Info().Msg("invoices created")

	log.Info().
		Str("subdomain", tenant.Subdomain).
		Str("admin", "admin@demo.clinicore.dev").
		Str("password", *password).
		Msg("seed complete")
}
