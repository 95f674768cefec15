package repository

import (
	"context"
	"fmt"
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

func TestCreateDerivesMonthlyNumber(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInvoiceRepository(db)

	now := time.Now()
	prefix := now.Format("200601")

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("t1", prefix).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) \+ 1 FROM invoices`).
		WithArgs("t1", prefix+"-%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`INSERT INTO invoices`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO invoice_items`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inv := &Invoice{
		PatientID: "p1",
		DueDate:   now.AddDate(0, 0, 15),
		Items: []Item{
			{Description: "Consultation", Quantity: 2, UnitPriceCents: 15000},
		},
	}
	err := repo.Create(tenantCtx("t1"), inv)

	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s-0007", prefix), inv.Number)
	assert.Equal(t, int64(30000), inv.SubtotalCents)
	assert.Equal(t, int64(30000), inv.TotalCents)
	assert.Equal(t, StatusPending, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsDiscountAboveSubtotal(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewInvoiceRepository(db)

	inv := &Invoice{
		PatientID:     "p1",
		DiscountCents: 50000,
		DueDate:       time.Now().AddDate(0, 0, 15),
		Items: []Item{
			{Description: "Consultation", Quantity: 1, UnitPriceCents: 25000},
		},
	}
	err := repo.Create(tenantCtx("t1"), inv)

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Details, "discount_cents")
}

func TestPayRejectsSettledInvoice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInvoiceRepository(db)

	paidAt := time.Now().Add(-time.Hour)
	invoiceRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "tenant_id", "patient_id", "appointment_id", "number", "status",
			"subtotal_cents", "discount_cents", "total_cents", "due_date",
			"payment_method", "paid_at", "cancelled_at", "notes", "created_at", "updated_at",
		}).AddRow(
			"i1", "t1", "p1", nil, "202508-0001", StatusPaid,
			25000, 0, 25000, time.Now().AddDate(0, 0, 10),
			"pix", paidAt, nil, nil, time.Now(), time.Now(),
		)
	}

	// conditional UPDATE misses, then the re-read reveals the paid status
	mock.ExpectQuery(`(?s)UPDATE invoices.+RETURNING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`(?s)SELECT .+ FROM invoices WHERE id`).
		WithArgs("i1", "t1").
		WillReturnRows(invoiceRow())
	mock.ExpectQuery(`(?s)SELECT .+ FROM invoice_items`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_id", "description", "tuss_code", "quantity", "unit_price_cents"}))

	_, err := repo.Pay(tenantCtx("t1"), "i1", "cash")

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_INVOICE_STATUS", appErr.Code)
	assert.Equal(t, 422, appErr.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
