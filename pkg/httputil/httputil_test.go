package httputil_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
)

func TestPaginationDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/patients", nil)

	page, perPage := httputil.Pagination(req)

	assert.Equal(t, 1, page)
	assert.Equal(t, 20, perPage)
}

func TestPaginationClampsOutOfRange(t *testing.T) {
	cases := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"negative page", "?page=-3&per_page=50", 1, 50},
		{"per page above cap", "?page=2&per_page=500", 2, 20},
		{"zero per page", "?per_page=0", 1, 20},
		{"non numeric", "?page=abc&per_page=xyz", 1, 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/patients"+tc.query, nil)
			page, perPage := httputil.Pagination(req)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantPerPage, perPage)
		})
	}
}

func TestPaginationReadsCamelCaseParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/patients?page=2&perPage=10", nil)

	page, perPage := httputil.Pagination(req)

	assert.Equal(t, 2, page)
	assert.Equal(t, 10, perPage)
}

func TestMetaSerializesCamelCaseKeys(t *testing.T) {
	raw, err := json.Marshal(httputil.NewMeta(2, 10, 41))
	require.NoError(t, err)

	var keys map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.Contains(t, keys, "perPage")
	assert.Contains(t, keys, "totalPages")
	assert.EqualValues(t, 5, keys["totalPages"])
}

func TestNewMetaComputesPageCount(t *testing.T) {
	meta := httputil.NewMeta(1, 20, 41)

	assert.Equal(t, int64(41), meta.Total)
	assert.Equal(t, 3, meta.TotalPages)
}

func TestErrorPassesThroughAppError(t *testing.T) {
	rr := httptest.NewRecorder()

	httputil.Error(rr, errors.Unprocessable("INSUFFICIENT_STOCK", "movement would drive stock negative"))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()

	httputil.Error(rr, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, assert.AnError.Error())
}

func TestValidateReportsEveryField(t *testing.T) {
	type form struct {
		Email string `validate:"required,email"`
		Role  string `validate:"required,oneof=doctor nurse"`
	}

	err := httputil.Validate(&form{Email: "not-an-email", Role: "janitor"})

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Len(t, appErr.Details, 2)
	assert.Contains(t, appErr.Details["Role"], "must be one of")
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	var target struct{}
	err := httputil.DecodeJSON(req, &target)

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}
