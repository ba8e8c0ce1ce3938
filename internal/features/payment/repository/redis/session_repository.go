package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/features/payment/repository"
	"pocketlegal-backend/internal/platform/redis"
)

const (
	sessionKeyPrefix = "purchase:session:"
	lockKeyPrefix    = "purchase:lock:"

	// Sessions outlive the attempt so a reload can reconcile, but they are
	// not the source of truth; transactions and grants are.
	sessionTTL = 24 * time.Hour
)

type sessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) repository.SessionRepository {
	return &sessionRepository{client: client}
}

func sessionKey(userID, itemKey string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, userID, itemKey)
}

func lockKey(userID, itemKey string) string {
	return fmt.Sprintf("%s%s:%s", lockKeyPrefix, userID, itemKey)
}

func (r *sessionRepository) Get(ctx context.Context, userID, itemKey string) (*models.PurchaseSession, error) {
	data, err := r.client.Get(ctx, sessionKey(userID, itemKey)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get purchase session: %w", err)
	}

	var session models.PurchaseSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal purchase session: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *models.PurchaseSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase session: %w", err)
	}

	return r.client.Set(ctx, sessionKey(session.UserID, session.ItemKey), data, sessionTTL).Err()
}

// AcquireLock guards against two concurrent purchase attempts for the same
// (user, item) pair. The TTL bounds lock leakage across a crash.
func (r *sessionRepository) AcquireLock(ctx context.Context, userID, itemKey string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKey(userID, itemKey), time.Now().UnixNano(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire purchase lock: %w", err)
	}
	return ok, nil
}

func (r *sessionRepository) ReleaseLock(ctx context.Context, userID, itemKey string) error {
	return r.client.Del(ctx, lockKey(userID, itemKey)).Err()
}
