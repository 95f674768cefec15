package service

import (
	"context"
	"encoding/json"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/tenant/repository"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// statusTransitions is the tenant lifecycle. Cancelled is terminal.
var statusTransitions = map[string][]string{
	repository.StatusTrial:     {repository.StatusActive, repository.StatusCancelled},
	repository.StatusActive:    {repository.StatusSuspended, repository.StatusCancelled},
	repository.StatusSuspended: {repository.StatusActive, repository.StatusCancelled},
}

func canTransition(from, to string) bool {
	for _, t := range statusTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// TenantStore is the persistence contract of the tenant service
type TenantStore interface {
	Create(ctx context.Context, t *repository.Tenant) error
	GetByID(ctx context.Context, id string) (*repository.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*repository.PublicTenant, error)
	List(ctx context.Context, status string, page, perPage int) ([]*repository.Tenant, int64, error)
	Update(ctx context.Context, t *repository.Tenant) error
	SetStatus(ctx context.Context, id, status string) (*repository.Tenant, error)
	PatchSettings(ctx context.Context, id string, patch json.RawMessage) (*repository.Tenant, error)
}

// TenantService handles tenant administration
type TenantService struct {
	repo    TenantStore
	auditor *audit.Recorder
	logger  *logger.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(repo TenantStore, auditor *audit.Recorder, log *logger.Logger) *TenantService {
	return &TenantService{
		repo:    repo,
		auditor: auditor,
		logger:  log,
	}
}

// Create registers a new tenant
func (s *TenantService) Create(ctx context.Context, t *repository.Tenant) error {
	if err := s.repo.Create(ctx, t); err != nil {
		return err
	}

	s.auditor.Record(ctx, "tenant.create", "tenant", t.ID, map[string]string{
		"subdomain": t.Subdomain,
	})
	return nil
}

// GetByID gets a tenant by id
func (s *TenantService) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySubdomain resolves a tenant for the public login flow
func (s *TenantService) GetBySubdomain(ctx context.Context, subdomain string) (*repository.PublicTenant, error) {
	return s.repo.GetBySubdomain(ctx, subdomain)
}

// List lists tenants with pagination
func (s *TenantService) List(ctx context.Context, status string, page, perPage int) ([]*repository.Tenant, int64, error) {
	return s.repo.List(ctx, status, page, perPage)
}

// Update updates a tenant's name and plan
func (s *TenantService) Update(ctx context.Context, t *repository.Tenant) error {
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}

	s.auditor.Record(ctx, "tenant.update", "tenant", t.ID, nil)
	return nil
}

// SetStatus moves a tenant through its lifecycle. There is no hard delete;
// cancellation is the terminal state.
func (s *TenantService) SetStatus(ctx context.Context, id, status string) (*repository.Tenant, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(current.Status, status) {
		return nil, errors.BadRequestWithCode("INVALID_TRANSITION",
			"cannot move tenant from "+current.Status+" to "+status)
	}

	t, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "tenant."+status, "tenant", id, nil)
	return t, nil
}

// PatchSettings merges keys into the tenant's settings JSON
func (s *TenantService) PatchSettings(ctx context.Context, id string, patch json.RawMessage) (*repository.Tenant, error) {
	t, err := s.repo.PatchSettings(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "tenant.settings.update", "tenant", id, nil)
	return t, nil
}
