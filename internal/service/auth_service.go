package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/propertyhub/maintenance-service/internal/auth"
	"github.com/propertyhub/maintenance-service/internal/config"
	"github.com/propertyhub/maintenance-service/internal/domain"
	"github.com/propertyhub/maintenance-service/internal/repository"
	apperrors "github.com/propertyhub/maintenance-service/pkg/util"
)

// AuthService issues tokens and manages identity registration.
type AuthService struct {
	cfg    config.AuthConfig
	users  repository.UserRepository
	tokens *auth.TokenManager
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		cfg:    cfg,
		users:  users,
		tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// RegisterInput describes a registration payload.
type RegisterInput struct {
	Username    string
	Name        string
	Email       string
	Password    string
	Role        domain.Role
	ApartmentID *string
}

// RegisterTenant creates a tenant identity in PENDING status. An admin
// activates it before the tenant can participate in the workflow.
func (s *AuthService) RegisterTenant(ctx context.Context, input RegisterInput) (*domain.User, error) {
	return s.register(ctx, input, domain.RoleTenant, domain.UserStatusPending)
}

// RegisterStaff creates a workflow identity (associate, manager,
// director, admin). Associates start PENDING like tenants; the rest are
// active immediately.
func (s *AuthService) RegisterStaff(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if !input.Role.IsStaff() {
		return nil, apperrors.NewValidationError("staff role required", map[string]any{"role": input.Role})
	}
	status := domain.UserStatusActive
	if input.Role == domain.RoleAssociate {
		status = domain.UserStatusPending
	}
	return s.register(ctx, input, input.Role, status)
}

func (s *AuthService) register(ctx context.Context, input RegisterInput, role domain.Role, status domain.UserStatus) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewValidationError("username and password required", nil)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict("username taken", map[string]any{"username": username})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     username,
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		ApartmentID:  input.ApartmentID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// LoginResult bundles an issued token and its subject.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login validates credentials and issues a JWT. Suspended identities
// may not log in; pending ones may (they see their data but the engine
// blocks workflow actions until activation).
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.Status == domain.UserStatusSuspended {
		return nil, apperrors.NewForbidden("identity suspended")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Activate flips a pending identity to ACTIVE.
func (s *AuthService) Activate(ctx context.Context, userID string) (*domain.User, error) {
	if err := s.users.UpdateStatus(ctx, userID, domain.UserStatusActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
