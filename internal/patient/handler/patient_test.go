package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/events"
	"github.com/clinicore/clinicore-backend/internal/patient/handler"
	"github.com/clinicore/clinicore-backend/internal/patient/repository"
	"github.com/clinicore/clinicore-backend/internal/patient/service"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/testutil"
)

type mockStore struct {
	patients map[string]*repository.Patient
}

func newMockStore() *mockStore {
	return &mockStore{patients: map[string]*repository.Patient{}}
}

func (m *mockStore) Create(ctx context.Context, p *repository.Patient) error {
	for _, existing := range m.patients {
		if existing.Document == p.Document {
			return errors.ConflictWithCode("PATIENT_EXISTS", "a patient with this document already exists")
		}
	}
	p.ID = "p" + p.Document
	p.Active = true
	m.patients[p.ID] = p
	return nil
}

func (m *mockStore) GetByID(ctx context.Context, id string) (*repository.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, errors.NotFound("patient")
	}
	return p, nil
}

func (m *mockStore) List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.Patient, int64, error) {
	out := []*repository.Patient{}
	for _, p := range m.patients {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (m *mockStore) Update(ctx context.Context, p *repository.Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return errors.NotFound("patient")
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockStore) SetActive(ctx context.Context, id string, active bool) error {
	p, ok := m.patients[id]
	if !ok {
		return errors.NotFound("patient")
	}
	p.Active = active
	return nil
}

func (m *mockStore) SetConsent(ctx context.Context, id string, consent bool) (*repository.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, errors.NotFound("patient")
	}
	p.Consent = consent
	if consent {
		now := time.Now()
		p.ConsentAt = &now
	} else {
		p.ConsentAt = nil
	}
	return p, nil
}

func (m *mockStore) History(ctx context.Context, id string) (*repository.History, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, errors.NotFound("patient")
	}
	return &repository.History{Patient: p}, nil
}

func newRouter(store *mockStore) chi.Router {
	log := logger.New("test", "development", "debug")
	svc := service.NewPatientService(store, events.NewNop(log), audit.NewRecorder(nil, log), log)
	h := handler.NewPatientHandler(svc, log)

	r := chi.NewRouter()
	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/consent", h.Consent)
		r.Get("/{id}/history", h.History)
	})
	return r
}

func TestCreatePatient(t *testing.T) {
	store := newMockStore()
	router := newRouter(store)

	req := testutil.NewHTTPRequest(http.MethodPost, "/patients", map[string]interface{}{
		"full_name":  "Maria Souza",
		"document":   "123.456.789-00",
		"birth_date": "1985-03-12",
		"consent":    true,
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)

	var resp struct {
		Data repository.Patient `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &resp)
	assert.Equal(t, "Maria Souza", resp.Data.FullName)
	assert.True(t, resp.Data.Consent)
	require.NotNil(t, resp.Data.ConsentAt)
}

func TestCreatePatientRejectsBadBirthDate(t *testing.T) {
	router := newRouter(newMockStore())

	req := testutil.NewHTTPRequest(http.MethodPost, "/patients", map[string]interface{}{
		"full_name":  "Maria Souza",
		"document":   "123.456.789-00",
		"birth_date": "12/03/1985",
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertBodyContains(t, rr, "birth_date")
}

func TestCreatePatientRejectsInvalidEmail(t *testing.T) {
	router := newRouter(newMockStore())

	req := testutil.NewHTTPRequest(http.MethodPost, "/patients", map[string]interface{}{
		"full_name":  "Maria Souza",
		"document":   "123.456.789-00",
		"birth_date": "1985-03-12",
		"email":      "not-an-email",
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertBodyContains(t, rr, "VALIDATION_ERROR")
}

func TestCreatePatientDuplicateDocument(t *testing.T) {
	store := newMockStore()
	router := newRouter(store)

	body := map[string]interface{}{
		"full_name":  "Maria Souza",
		"document":   "123.456.789-00",
		"birth_date": "1985-03-12",
	}
	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/patients", body))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/patients", body))
	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertBodyContains(t, rr, "PATIENT_EXISTS")
}

func TestGetPatientNotFound(t *testing.T) {
	router := newRouter(newMockStore())

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/patients/missing", nil))

	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertBodyContains(t, rr, "NOT_FOUND")
}

func TestDeletePatientSoftDeletes(t *testing.T) {
	store := newMockStore()
	store.patients["p1"] = &repository.Patient{ID: "p1", FullName: "Maria Souza", Active: true}
	router := newRouter(store)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodDelete, "/patients/p1", nil))

	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.False(t, store.patients["p1"].Active)
}

func TestConsentRevocation(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	store.patients["p1"] = &repository.Patient{ID: "p1", Consent: true, ConsentAt: &now, Active: true}
	router := newRouter(store)

	req := testutil.NewHTTPRequest(http.MethodPost, "/patients/p1/consent", map[string]interface{}{
		"consent": false,
	})
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.False(t, store.patients["p1"].Consent)
	assert.Nil(t, store.patients["p1"].ConsentAt)
}

func TestListPatientsCarriesMeta(t *testing.T) {
	store := newMockStore()
	store.patients["p1"] = &repository.Patient{ID: "p1", FullName: "Maria Souza", Active: true}
	router := newRouter(store)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/patients", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp httputil.Response
	testutil.ParseJSONBody(t, rr, &resp)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
}
