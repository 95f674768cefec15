package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinicore-backend/internal/audit"
	"github.com/clinicore/clinicore-backend/internal/user/repository"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/identity"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// UserStore is the persistence contract of the user service
type UserStore interface {
	Create(ctx context.Context, u *repository.User) error
	GetByID(ctx context.Context, id string) (*repository.User, error)
	List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.User, int64, error)
	Update(ctx context.Context, u *repository.User) error
	SetActive(ctx context.Context, id string, active bool) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id, name string) (*repository.User, error)
}

// UserService handles user administration
type UserService struct {
	repo    UserStore
	auditor *audit.Recorder
	logger  *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(repo UserStore, auditor *audit.Recorder, log *logger.Logger) *UserService {
	return &UserService{
		repo:    repo,
		auditor: auditor,
		logger:  log,
	}
}

// Create registers a new user with a bcrypt password hash. Only a
// super-admin can mint another super-admin.
func (s *UserService) Create(ctx context.Context, u *repository.User, password string) error {
	if !identity.IsValidRole(u.Role) {
		return errors.Validation(map[string]string{"role": "must be a valid role"})
	}

	if u.Role == identity.RoleSuperAdmin {
		id, err := identity.FromContext(ctx)
		if err != nil {
			return errors.Unauthorized("not authenticated")
		}
		if !id.IsSuperAdmin() {
			return errors.InsufficientPermissions([]string{identity.RoleSuperAdmin}, id.Role)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)

	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}

	s.auditor.Record(ctx, "user.create", "user", u.ID, map[string]string{
		"email": u.Email,
		"role":  u.Role,
	})
	return nil
}

// GetByID gets a user by id
func (s *UserService) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists users with filters and pagination
func (s *UserService) List(ctx context.Context, f repository.Filter, page, perPage int) ([]*repository.User, int64, error) {
	return s.repo.List(ctx, f, page, perPage)
}

// Update updates a user's name, role and specialties
func (s *UserService) Update(ctx context.Context, u *repository.User) error {
	if !identity.IsValidRole(u.Role) {
		return errors.Validation(map[string]string{"role": "must be a valid role"})
	}

	if u.Role == identity.RoleSuperAdmin {
		id, err := identity.FromContext(ctx)
		if err != nil {
			return errors.Unauthorized("not authenticated")
		}
		if !id.IsSuperAdmin() {
			return errors.InsufficientPermissions([]string{identity.RoleSuperAdmin}, id.Role)
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}

	s.auditor.Record(ctx, "user.update", "user", u.ID, map[string]string{
		"role": u.Role,
	})
	return nil
}

// Activate enables a user's login
func (s *UserService) Activate(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}

	s.auditor.Record(ctx, "user.activate", "user", id, nil)
	return nil
}

// Deactivate disables a user's login
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}

	s.auditor.Record(ctx, "user.deactivate", "user", id, nil)
	return nil
}

// SetPassword replaces a user's password
func (s *UserService) SetPassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}

	s.auditor.Record(ctx, "user.password.change", "user", id, nil)
	return nil
}

// UpdateProfile updates the caller's own name
func (s *UserService) UpdateProfile(ctx context.Context, name string) (*repository.User, error) {
	id, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.UpdateProfile(ctx, id.UserID, name)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, "user.profile.update", "user", id.UserID, nil)
	return u, nil
}

// Profile returns the caller's own user row
func (s *UserService) Profile(ctx context.Context) (*repository.User, error) {
	id, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id.UserID)
}
