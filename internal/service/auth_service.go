package service

import (
	"context"
	"strings"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	pkgerrors "go-inventory-ledger/pkg/errors"
	"go-inventory-ledger/pkg/jwt"
	"go-inventory-ledger/pkg/logger"
	"go-inventory-ledger/pkg/validator"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
	ErrUserInactive       = pkgerrors.New(pkgerrors.CodeUnauthorized, "user account is inactive")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Register(ctx context.Context, in RegisterInput) (*LoginResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      model.UserResponse `json:"user"`
}

// RegisterInput is self sign-up; the account always starts as staff.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"max=255"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	ttl      time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, ttl time.Duration, logg *logger.Logger) AuthService {
	if logg == nil {
		logg = logger.Nop()
	}
	return &authService{userRepo: userRepo, tokens: tokens, ttl: ttl, logg: logg, now: time.Now}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, translate(err, "")
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "could not record last login")
	}
	user.LastLoginAt = &now

	return s.issue(user, now)
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*LoginResponse, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	user, err := createUser(ctx, s.userRepo, in.Username, in.Email, in.Password, in.FullName, model.RoleStaff)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	return s.issue(user, s.now().UTC())
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user not found")
	}
	resp := user.ToResponse()
	return &resp, nil
}

// Authenticate validates a bearer token and loads its still-active user.
func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid or expired token")
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, translate(err, "")
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (s *authService) issue(user *model.User, now time.Time) (*LoginResponse, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Username, user.Email, string(user.Role))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to generate token")
	}
	return &LoginResponse{
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		User:      user.ToResponse(),
	}, nil
}

// createUser enforces unique username/email and hashes the password.
func createUser(ctx context.Context, repo repository.UserRepository, username, email, password, fullName string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already exists")
	} else if !isNotFound(err) {
		return nil, translate(err, "")
	}
	if _, err := repo.FindByUsername(ctx, username); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already exists")
	} else if !isNotFound(err) {
		return nil, translate(err, "")
	}

	user := &model.User{
		Username: username,
		Email:    email,
		FullName: strings.TrimSpace(fullName),
		Role:     role,
		IsActive: true,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to hash password")
	}
	if err := repo.Create(ctx, user); err != nil {
		return nil, translate(err, "")
	}
	return user, nil
}
