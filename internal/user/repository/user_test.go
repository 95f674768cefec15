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

func TestCreatePersistsProfessionalRegistry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	now := time.Now()
	crm := "CRM/SP 123456"
	mock.ExpectQuery(`(?s)INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "t1", "doctor@demo.clinicore.dev", "Dr Demo", "hash",
			identity.RoleDoctor, crm, sqlmock.AnyArg(), true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := &User{
		Email:          "doctor@demo.clinicore.dev",
		Name:           "Dr Demo",
		PasswordHash:   "hash",
		Role:           identity.RoleDoctor,
		ProfessionalID: &crm,
	}
	err := repo.Create(identity.WithTenantID(context.Background(), "t1"), u)

	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDefaultsNullProfessionalRegistry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "t1", "reception@demo.clinicore.dev", "Front Desk", "hash",
			identity.RoleReceptionist, nil, sqlmock.AnyArg(), true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := &User{
		Email:        "reception@demo.clinicore.dev",
		Name:         "Front Desk",
		PasswordHash: "hash",
		Role:         identity.RoleReceptionist,
	}
	err := repo.Create(identity.WithTenantID(context.Background(), "t1"), u)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
