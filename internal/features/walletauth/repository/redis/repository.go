package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"pocketlegal-backend/internal/features/walletauth/models"
	"pocketlegal-backend/internal/features/walletauth/repository"
	"pocketlegal-backend/internal/platform/redis"
)

const (
	nonceKeyPrefix   = "auth:nonce:"
	sessionKeyPrefix = "auth:session:"
)

type redisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) repository.Repository {
	return &redisRepository{client: client}
}

func (r *redisRepository) SaveNonce(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error {
	return r.client.Set(ctx, nonceKeyPrefix+walletAddress, nonce, ttl).Err()
}

func (r *redisRepository) ConsumeNonce(ctx context.Context, walletAddress string) (string, error) {
	nonce, err := r.client.GetDel(ctx, nonceKeyPrefix+walletAddress).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", repository.ErrNonceNotFound
		}
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	return nonce, nil
}

func (r *redisRepository) SaveSession(ctx context.Context, token string, session *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, sessionKeyPrefix+token, data, ttl).Err()
}

func (r *redisRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *redisRepository) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}
