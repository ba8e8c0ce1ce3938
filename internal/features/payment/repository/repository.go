package repository

import (
	"context"
	"errors"
	"time"

	"pocketlegal-backend/internal/features/payment/models"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrIllegalStatusChange = errors.New("illegal transaction status change")
)

// TransactionRepository persists append-only payment attempts.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)

	// RecordTxHash durably stores the on-chain reference on a still-pending
	// transaction, so reconciliation can re-query the chain after a crash.
	RecordTxHash(ctx context.Context, id, txHash string) error

	// MarkCompleted moves pending -> completed and stores the on-chain
	// reference.
	MarkCompleted(ctx context.Context, id, txHash string) error

	// MarkFailed moves pending -> failed with the failure reason preserved
	// for audit.
	MarkFailed(ctx context.Context, id, reason string) error

	ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error)

	// SumCompletedByUser totals amount_cents over completed transactions
	// only.
	SumCompletedByUser(ctx context.Context, userID string) (int64, error)

	// ListPendingOlderThan feeds the reconciler.
	ListPendingOlderThan(ctx context.Context, age time.Duration) ([]*models.Transaction, error)

	// ListCompletedWithoutGrant finds completed payments whose grant step
	// was interrupted.
	ListCompletedWithoutGrant(ctx context.Context) ([]*models.Transaction, error)
}

// AccessGrantRepository persists the access ledger.
type AccessGrantRepository interface {
	// Upsert is idempotent on the (user, item) pair.
	Upsert(ctx context.Context, grant *models.AccessGrant) error

	// Exists reports whether an unexpired grant covers the pair at now.
	Exists(ctx context.Context, userID string, item models.ItemRef, now time.Time) (bool, error)

	ListByUser(ctx context.Context, userID string) ([]*models.AccessGrant, error)
}

// SessionRepository stores purchase-flow sessions and the per-(user, item)
// purchase lock.
type SessionRepository interface {
	// Get returns (nil, nil) when no session exists.
	Get(ctx context.Context, userID, itemKey string) (*models.PurchaseSession, error)
	Save(ctx context.Context, session *models.PurchaseSession) error

	// AcquireLock returns false when another attempt holds the lock.
	AcquireLock(ctx context.Context, userID, itemKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, userID, itemKey string) error
}
