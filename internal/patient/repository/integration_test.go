package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/testutil"
)

// setupIntegration boots a throwaway PostgreSQL container with the full
// schema and a tenant row to scope the repository under test.
func setupIntegration(t *testing.T) (*PatientRepository, context.Context) {
	t.Helper()
	testutil.SkipIfShort(t)

	ctx := testutil.DefaultTestContext(t)

	container, err := testutil.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	db, err := container.Connect(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, container.ApplyMigrations(ctx, db))

	tenantID := uuid.New().String()
	_, err = db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, subdomain, document, status) VALUES ($1, 'Test Clinic', 'test', '00.000.000/0001-00', 'active')`,
		tenantID)
	require.NoError(t, err)

	log := logger.New("test", "development", "debug")
	repo := NewPatientRepository(database.NewWithDB(db, log))
	return repo, testutil.ContextWithTenant(tenantID)
}

func TestPatientLifecycleIntegration(t *testing.T) {
	repo, ctx := setupIntegration(t)

	p := &Patient{
		FullName:  "Maria Souza",
		Document:  "123.456.789-00",
		BirthDate: time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC),
		Consent:   true,
	}
	now := time.Now()
	p.ConsentAt = &now

	require.NoError(t, repo.Create(ctx, p))
	require.NotEmpty(t, p.ID)

	// Duplicate document within the tenant
	err := repo.Create(ctx, &Patient{
		FullName:  "Maria Impostora",
		Document:  "123.456.789-00",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PATIENT_EXISTS", appErr.Code)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", got.FullName)
	assert.True(t, got.Active)

	// Soft delete hides nothing from GetByID but flips the flag
	require.NoError(t, repo.SetActive(ctx, p.ID, false))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	// Consent revocation clears the timestamp
	got, err = repo.SetConsent(ctx, p.ID, false)
	require.NoError(t, err)
	assert.False(t, got.Consent)
	assert.Nil(t, got.ConsentAt)

	// Search by partial name
	patients, total, err := repo.List(ctx, Filter{Search: "souza"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, patients, 1)
	assert.Equal(t, p.ID, patients[0].ID)
}

func TestPatientTenantIsolationIntegration(t *testing.T) {
	repo, ctx := setupIntegration(t)

	p := &Patient{
		FullName:  "Maria Souza",
		Document:  "123.456.789-00",
		BirthDate: time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, p))

	otherTenant := testutil.ContextWithTenant(uuid.New().String())
	_, err := repo.GetByID(otherTenant, p.ID)

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}
