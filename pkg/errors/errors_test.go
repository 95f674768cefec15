package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/pkg/errors"
)

func TestAppErrorUnwraps(t *testing.T) {
	err := errors.NotFound("patient")

	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "patient not found", err.Message)
}

func TestWrappedAppErrorSurvivesFmtWrap(t *testing.T) {
	inner := errors.ConflictWithCode("APPOINTMENT_CONFLICT", "slot taken")
	outer := fmt.Errorf("creating appointment: %w", inner)

	var appErr *errors.AppError
	require.True(t, errors.As(outer, &appErr))
	assert.Equal(t, "APPOINTMENT_CONFLICT", appErr.Code)
}

func TestDomainCodeConstructors(t *testing.T) {
	cases := []struct {
		err        *errors.AppError
		wantCode   string
		wantStatus int
	}{
		{errors.BadRequestWithCode("CANNOT_CANCEL", "x"), "CANNOT_CANCEL", http.StatusBadRequest},
		{errors.ConflictWithCode("PATIENT_EXISTS", "x"), "PATIENT_EXISTS", http.StatusConflict},
		{errors.Unprocessable("INSUFFICIENT_STOCK", "x"), "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity},
		{errors.NoToken(), "NO_TOKEN", http.StatusUnauthorized},
		{errors.TokenExpired(), "TOKEN_EXPIRED", http.StatusUnauthorized},
		{errors.TokenInvalid(), "INVALID_TOKEN", http.StatusUnauthorized},
		{errors.NoTenantContext(), "NO_TENANT_CONTEXT", http.StatusForbidden},
		{errors.TenantAccessDenied(), "TENANT_ACCESS_DENIED", http.StatusForbidden},
		{errors.InvalidCredentials(), "INVALID_CREDENTIALS", http.StatusUnauthorized},
		{errors.RateLimited("60"), "RATE_LIMITED", http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.wantCode, func(t *testing.T) {
			assert.Equal(t, tc.wantCode, tc.err.Code)
			assert.Equal(t, tc.wantStatus, tc.err.StatusCode)
		})
	}
}

func TestValidationCarriesDetails(t *testing.T) {
	err := errors.Validation(map[string]string{"ends_at": "must be after starts_at"})

	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, "must be after starts_at", err.Details["ends_at"])
}

func TestInsufficientPermissionsDetails(t *testing.T) {
	err := errors.InsufficientPermissions([]string{"super_admin", "tenant_admin"}, "doctor")

	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", err.Code)
	assert.Equal(t, "super_admin,tenant_admin", err.Details["requiredRoles"])
	assert.Equal(t, "doctor", err.Details["userRole"])
}
