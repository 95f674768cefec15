package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/pkg/database"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	log := logger.New("test", "development", "debug")
	return database.NewWithDB(sqlxDB, log), mock
}

func tenantCtx(tenantID string) context.Context {
	return identity.WithTenantID(context.Background(), tenantID)
}

func TestCreateRejectsDuplicateDocument(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatientRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("t1", "123.456.789-00").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Create(tenantCtx("t1"), &Patient{
		FullName:  "Maria Souza",
		Document:  "123.456.789-00",
		BirthDate: time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC),
	})

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PATIENT_EXISTS", appErr.Code)
	assert.Equal(t, 409, appErr.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateScopesToTenant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatientRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("t1", "123.456.789-00").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO patients`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p := &Patient{
		FullName:  "Maria Souza",
		Document:  "123.456.789-00",
		BirthDate: time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(tenantCtx("t1"), p)

	require.NoError(t, err)
	assert.Equal(t, "t1", p.TenantID)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithoutTenantContext(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewPatientRepository(db)

	err := repo.Create(context.Background(), &Patient{Document: "123"})

	assert.ErrorIs(t, err, identity.ErrNoTenant)
}
