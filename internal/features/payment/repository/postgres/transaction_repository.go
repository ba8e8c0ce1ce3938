package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/features/payment/repository"
)

const transactionColumns = `
	id, user_id, COALESCE(content_id, ''), COALESCE(template_id, ''),
	amount_cents, currency, status, COALESCE(tx_hash, ''),
	COALESCE(failure_reason, ''), created_at, updated_at
`

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, content_id, template_id, amount_cents, currency, status)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID, tx.UserID, tx.ContentID, tx.TemplateID, tx.AmountCents, tx.Currency, tx.Status)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return tx, nil
}

func (r *transactionRepository) RecordTxHash(ctx context.Context, id, txHash string) error {
	query := `
		UPDATE transactions
		SET tx_hash = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	return r.guardedUpdate(ctx, query, id, txHash)
}

// MarkCompleted guards the pending -> completed edge in SQL so a reconciler
// racing the orchestrator cannot double-apply it.
func (r *transactionRepository) MarkCompleted(ctx context.Context, id, txHash string) error {
	query := `
		UPDATE transactions
		SET status = 'completed', tx_hash = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	return r.guardedUpdate(ctx, query, id, txHash)
}

func (r *transactionRepository) MarkFailed(ctx context.Context, id, reason string) error {
	query := `
		UPDATE transactions
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	return r.guardedUpdate(ctx, query, id, reason)
}

func (r *transactionRepository) guardedUpdate(ctx context.Context, query, id, arg string) error {
	result, err := r.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrIllegalStatusChange
	}
	return nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

func (r *transactionRepository) SumCompletedByUser(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE user_id = $1 AND status = 'completed'
	`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}

	return total, nil
}

func (r *transactionRepository) ListPendingOlderThan(ctx context.Context, age time.Duration) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
	`

	return r.list(ctx, query, time.Now().Add(-age))
}

func (r *transactionRepository) ListCompletedWithoutGrant(ctx context.Context) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE t.status = 'completed'
		  AND NOT EXISTS (
			SELECT 1 FROM access_grants g WHERE g.transaction_id = t.id
		  )
		ORDER BY t.created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *transactionRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.ContentID, &tx.TemplateID,
		&tx.AmountCents, &tx.Currency, &tx.Status, &tx.TxHash,
		&tx.FailureReason, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
