package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/tenant/repository"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

type mockStore struct {
	tenants map[string]*repository.Tenant
}

func newMockStore() *mockStore {
	return &mockStore{tenants: map[string]*repository.Tenant{}}
}

func (m *mockStore) Create(ctx context.Context, t *repository.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *mockStore) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, errors.NotFound("tenant")
	}
	return t, nil
}

func (m *mockStore) GetBySubdomain(ctx context.Context, subdomain string) (*repository.PublicTenant, error) {
	for _, t := range m.tenants {
		if t.Subdomain == subdomain {
			return &repository.PublicTenant{ID: t.ID, Name: t.Name, Subdomain: t.Subdomain, Status: t.Status}, nil
		}
	}
	return nil, errors.NotFound("tenant")
}

func (m *mockStore) List(ctx context.Context, status string, page, perPage int) ([]*repository.Tenant, int64, error) {
	out := []*repository.Tenant{}
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (m *mockStore) Update(ctx context.Context, t *repository.Tenant) error {
	if _, ok := m.tenants[t.ID]; !ok {
		return errors.NotFound("tenant")
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *mockStore) SetStatus(ctx context.Context, id, status string) (*repository.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, errors.NotFound("tenant")
	}
	t.Status = status
	return t, nil
}

func (m *mockStore) PatchSettings(ctx context.Context, id string, patch json.RawMessage) (*repository.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, errors.NotFound("tenant")
	}
	t.Settings = patch
	return t, nil
}

func newTestService(store *mockStore) *TenantService {
	log := logger.New("test", "development", "debug")
	return NewTenantService(store, audit.NewRecorder(nil, log), log)
}

func seedTenant(store *mockStore, status string) *repository.Tenant {
	t := &repository.Tenant{
		ID:        "t1",
		Name:      "Demo Clinic",
		Subdomain: "demo",
		Status:    status,
		Plan:      "standard",
	}
	store.tenants[t.ID] = t
	return t
}

func TestSetStatusLifecycle(t *testing.T) {
	cases := []struct {
		from string
		to   string
		ok   bool
	}{
		{repository.StatusTrial, repository.StatusActive, true},
		{repository.StatusTrial, repository.StatusCancelled, true},
		{repository.StatusTrial, repository.StatusSuspended, false},
		{repository.StatusActive, repository.StatusSuspended, true},
		{repository.StatusActive, repository.StatusCancelled, true},
		{repository.StatusActive, repository.StatusTrial, false},
		{repository.StatusSuspended, repository.StatusActive, true},
		{repository.StatusSuspended, repository.StatusCancelled, true},
		{repository.StatusCancelled, repository.StatusActive, false},
		{repository.StatusCancelled, repository.StatusTrial, false},
	}

	for _, tc := range cases {
		t.Run(tc.from+" to "+tc.to, func(t *testing.T) {
			store := newMockStore()
			svc := newTestService(store)
			seedTenant(store, tc.from)

			tenant, err := svc.SetStatus(context.Background(), "t1", tc.to)

			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, tenant.Status)
				return
			}

			require.Error(t, err)
			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "INVALID_TRANSITION", appErr.Code)
		})
	}
}

func TestSetStatusUnknownTenant(t *testing.T) {
	svc := newTestService(newMockStore())

	_, err := svc.SetStatus(context.Background(), "missing", repository.StatusActive)

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestPatchSettingsMerges(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	seedTenant(store, repository.StatusActive)

	patch := json.RawMessage(`{"timezone": "America/Sao_Paulo"}`)
	tenant, err := svc.PatchSettings(context.Background(), "t1", patch)

	require.NoError(t, err)
	assert.JSONEq(t, string(patch), string(tenant.Settings))
}
