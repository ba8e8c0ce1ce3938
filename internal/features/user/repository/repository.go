package repository

import (
	"context"
	"errors"

	"pocketlegal-backend/internal/features/user/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}
