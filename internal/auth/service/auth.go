package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinicore-backend/internal/auth/jwt"
	"github.com/clinicore/clinicore-backend/internal/auth/repository"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// CredentialsStore resolves login credentials
type CredentialsStore interface {
	GetByEmail(ctx context.Context, email, subdomain string) (*repository.Credentials, error)
	GetByID(ctx context.Context, userID string) (*repository.Credentials, error)
}

// SessionStore persists refresh-token sessions
type SessionStore interface {
	CreateWithID(ctx context.Context, id, userID, tenantID, refreshToken string, expiresAt time.Time, userAgent, ipAddress string) (*repository.Session, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*repository.Session, error)
	Rotate(ctx context.Context, id string, newRefreshToken string) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
}

// AuthService handles authentication logic
type AuthService struct {
	creds      CredentialsStore
	sessions   SessionStore
	jwtManager *jwt.Manager
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(creds CredentialsStore, sessions SessionStore, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		creds:      creds,
		sessions:   sessions,
		jwtManager: jwtManager,
		logger:     log,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Subdomain string `json:"subdomain,omitempty"`
}

// UserInfo represents the authenticated user in login responses
type UserInfo struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	User         *UserInfo `json:"user"`
}

// Login authenticates a user and returns a token pair
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, userAgent, ipAddress string) (*LoginResponse, error) {
	creds, err := s.creds.GetByEmail(ctx, req.Email, req.Subdomain)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.InvalidCredentials()
		}
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error().Err(err).Msg("credential lookup failed")
		return nil, errors.Internal("failed to authenticate")
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)) != nil {
		return nil, errors.InvalidCredentials()
	}
	if !creds.Active {
		return nil, errors.Forbidden("user account is deactivated")
	}
	if creds.TenantStatus != "active" {
		return nil, errors.Forbidden("tenant is " + creds.TenantStatus)
	}

	return s.issueTokens(ctx, creds, userAgent, ipAddress)
}

// Refresh validates a refresh token, rotates it and returns a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.TokenInvalid()
		}
		s.logger.Error().Err(err).Msg("session lookup failed")
		return nil, errors.Internal("failed to refresh token")
	}

	creds, err := s.creds.GetByID(ctx, claims.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.TokenInvalid()
		}
		return nil, errors.Internal("failed to refresh token")
	}
	if !creds.Active || creds.TenantStatus != "active" {
		return nil, errors.Forbidden("account no longer active")
	}

	tokens, err := s.jwtManager.GenerateTokenPair(userInfoFromCreds(creds), session.ID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	if err := s.sessions.Rotate(ctx, session.ID, tokens.RefreshToken); err != nil {
		s.logger.Error().Err(err).Msg("failed to rotate session")
		return nil, errors.Internal("failed to refresh token")
	}

	return &LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User:         userResponse(creds),
	}, nil
}

// Logout revokes the session carrying the given refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessions.RevokeByRefreshToken(ctx, refreshToken); err != nil {
		s.logger.Warn().Err(err).Msg("failed to revoke session")
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, creds *repository.Credentials, userAgent, ipAddress string) (*LoginResponse, error) {
	sessionID := uuid.New().String()

	tokens, err := s.jwtManager.GenerateTokenPair(userInfoFromCreds(creds), sessionID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	expiresAt := time.Now().Add(s.jwtManager.GetRefreshExpiry())
	if _, err := s.sessions.CreateWithID(ctx, sessionID, creds.UserID, creds.TenantID, tokens.RefreshToken, expiresAt, userAgent, ipAddress); err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		return nil, errors.Internal("failed to create session")
	}

	return &LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User:         userResponse(creds),
	}, nil
}

func userInfoFromCreds(c *repository.Credentials) *jwt.UserInfo {
	return &jwt.UserInfo{
		ID:       c.UserID,
		TenantID: c.TenantID,
		Email:    c.Email,
		Name:     c.Name,
		Role:     c.Role,
	}
}

func userResponse(c *repository.Credentials) *UserInfo {
	return &UserInfo{
		ID:       c.UserID,
		TenantID: c.TenantID,
		Email:    c.Email,
		Name:     c.Name,
		Role:     c.Role,
	}
}
