package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "campuslib/internal/errors"
	"campuslib/internal/model"
	"campuslib/internal/repository"
)

// UserUpdate carries optional account changes. Blank fields are left alone.
type UserUpdate struct {
	Name     string
	Email    string
	Role     model.Role
	Password string
}

// UserService exposes account administration.
type UserService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateUser(ctx context.Context, callerID, id uuid.UUID, update UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, callerID, id uuid.UUID) error
}

type userService struct {
	repo repository.UserRepository
}

// NewUserService builds a UserService over the account repository.
func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	return user, nil
}

// UpdateUser edits an account. Callers cannot change their own role.
func (s *userService) UpdateUser(ctx context.Context, callerID, id uuid.UUID, update UserUpdate) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}

	role := model.Role(strings.TrimSpace(string(update.Role)))
	if role != "" && !role.Valid() {
		return nil, apperrors.ErrInvalidRole
	}
	if callerID == id && role != "" && role != user.Role {
		return nil, apperrors.ErrSelfRoleChange
	}

	if name := strings.TrimSpace(update.Name); name != "" {
		user.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(update.Email)); email != "" && email != user.Email {
		other, err := s.repo.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if other != nil && other.ID != user.ID {
			return nil, apperrors.ErrDuplicateEmail
		}
		user.Email = email
	}
	if role != "" {
		user.Role = role
	}
	if update.Password != "" {
		hash, err := hashPassword(update.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account other than the caller's own.
func (s *userService) DeleteUser(ctx context.Context, callerID, id uuid.UUID) error {
	if callerID == id {
		return apperrors.ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, apperrors.ErrUserNotFound)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
