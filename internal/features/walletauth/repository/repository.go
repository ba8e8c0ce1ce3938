package repository

import (
	"context"
	"errors"
	"time"

	"pocketlegal-backend/internal/features/walletauth/models"
)

var (
	ErrNonceNotFound   = errors.New("nonce not found or expired")
	ErrSessionNotFound = errors.New("session not found or expired")
)

type Repository interface {
	SaveNonce(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error

	// ConsumeNonce returns the stored nonce and removes it, so each
	// challenge is usable once.
	ConsumeNonce(ctx context.Context, walletAddress string) (string, error)

	SaveSession(ctx context.Context, token string, session *models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}
