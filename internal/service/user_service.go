package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"Mercury/internal/model"
	"Mercury/internal/repo"
)

// UserService is the thin registration/lookup surface. The messaging core
// only ever consumes users through the repository.
type UserService struct {
	users  repo.UserRepository
	logger *zap.Logger
}

func NewUserService(users repo.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// CreateUserRequest carries a registration payload.
type CreateUserRequest struct {
	UserKey     string `json:"userKey" binding:"required"`
	UserName    string `json:"userName" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	FullName    string `json:"fullName" binding:"required"`
	Avatar      string `json:"avatar"`
}

// CreateUser registers a user, enforcing userKey and phoneNumber uniqueness.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	if _, err := s.users.FindByUserKey(ctx, req.UserKey); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repo.ErrUserMissing) {
		return nil, err
	}
	if _, err := s.users.FindByPhoneNumber(ctx, req.PhoneNumber); err == nil {
		return nil, ErrPhoneExists
	} else if !errors.Is(err, repo.ErrUserMissing) {
		return nil, err
	}

	user := &model.User{
		UserKey:     req.UserKey,
		UserName:    req.UserName,
		PhoneNumber: req.PhoneNumber,
		FullName:    req.FullName,
		Avatar:      req.Avatar,
		CreatedAt:   time.Now(),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("user create failed", zap.String("user_key", req.UserKey), zap.Error(err))
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_key", user.UserKey))
	return user, nil
}

// GetUser looks a user up by key.
func (s *UserService) GetUser(ctx context.Context, userKey string) (*model.User, error) {
	user, err := s.users.FindByUserKey(ctx, userKey)
	if err != nil {
		if errors.Is(err, repo.ErrUserMissing) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetUserByPhone looks a user up by phone number.
func (s *UserService) GetUserByPhone(ctx context.Context, phoneNumber string) (*model.User, error) {
	user, err := s.users.FindByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, repo.ErrUserMissing) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
