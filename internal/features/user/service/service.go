package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pocketlegal-backend/internal/features/user/models"
	"pocketlegal-backend/internal/features/user/repository"
)

var ErrUserNotFound = errors.New("user not found")

type UserService interface {
	GetUser(ctx context.Context, id string) (*models.UserResponse, error)
	GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.UserResponse, error)
	UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.UserResponse, error)
}

type userService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) GetUser(ctx context.Context, id string) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserResponse(user), nil
}

// GetOrCreateByWallet resolves the user owning walletAddress, creating the
// record on first connection.
func (s *userService) GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.UserResponse, error) {
	user, err := s.repo.GetByWallet(ctx, walletAddress)
	if err == nil {
		return toUserResponse(user), nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	newUser := &models.User{
		ID:            uuid.New().String(),
		WalletAddress: walletAddress,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.repo.Create(ctx, newUser); err != nil {
		return nil, err
	}

	return toUserResponse(newUser), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.FarcasterID != nil {
		user.FarcasterID = *req.FarcasterID
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	user.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return toUserResponse(user), nil
}

func toUserResponse(user *models.User) *models.UserResponse {
	return &models.UserResponse{
		ID:            user.ID,
		WalletAddress: user.WalletAddress,
		FarcasterID:   user.FarcasterID,
		Email:         user.Email,
		Phone:         user.Phone,
		CreatedAt:     user.CreatedAt,
	}
}
