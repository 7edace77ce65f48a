package service

import (
	"context"
	"strings"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	pkgerrors "go-inventory-ledger/pkg/errors"
	"go-inventory-ledger/pkg/validator"

	"github.com/google/uuid"
)

type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*model.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error)
	ToggleStatus(ctx context.Context, userID, actorID uuid.UUID) (*model.User, error)
	DeactivateUser(ctx context.Context, userID, actorID uuid.UUID) error
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
	EnsureAdmin(ctx context.Context, username, email, password string) (bool, error)
}

type CreateUserRequest struct {
	Username string     `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	FullName string     `json:"full_name" validate:"max=255"`
	Role     model.Role `json:"role" validate:"required,oneof=admin manager staff"`
}

type UpdateUserRequest struct {
	Email    *string     `json:"email,omitempty" validate:"omitempty,email"`
	Password *string     `json:"password,omitempty" validate:"omitempty,min=6"` // Optional
	FullName *string     `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Role     *model.Role `json:"role,omitempty" validate:"omitempty,oneof=admin manager staff"`
	IsActive *bool       `json:"is_active,omitempty"`
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest) (*model.User, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	return createUser(ctx, s.userRepo, req.Username, req.Email, req.Password, req.FullName, req.Role)
}

func (s *userService) UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user not found")
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			if existing, err := s.userRepo.FindByEmail(ctx, email); err == nil && existing.ID != user.ID {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already exists")
			}
			user.Email = email
		}
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to hash password")
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, translate(err, "user not found")
	}
	return user, nil
}

// ToggleStatus flips the active flag. Users cannot deactivate themselves.
func (s *userService) ToggleStatus(ctx context.Context, userID, actorID uuid.UUID) (*model.User, error) {
	if userID == actorID {
		return nil, validationError("you cannot change your own status")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user not found")
	}
	user.IsActive = !user.IsActive
	if err := s.userRepo.SetActive(ctx, user.ID, user.IsActive); err != nil {
		return nil, translate(err, "user not found")
	}
	return user, nil
}

// DeactivateUser is the delete operation. Ledger entries keep referencing their performer,
// so the row stays and the account can no longer sign in.
func (s *userService) DeactivateUser(ctx context.Context, userID, actorID uuid.UUID) error {
	if userID == actorID {
		return validationError("you cannot delete your own account")
	}
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return translate(err, "user not found")
	}
	return translate(s.userRepo.SetActive(ctx, userID, false), "user not found")
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, translate(err, "")
	}

	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "user not found")
	}
	response := user.ToResponse()
	return &response, nil
}

// EnsureAdmin creates the bootstrap admin unless a user with that email exists.
func (s *userService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, translate(err, "")
	}
	if _, err := createUser(ctx, s.userRepo, username, email, password, "Administrator", model.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
