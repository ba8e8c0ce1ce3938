package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/features/payment/repository"
)

type grantRepository struct {
	db *sql.DB
}

func NewGrantRepository(db *sql.DB) repository.AccessGrantRepository {
	return &grantRepository{db: db}
}

// Upsert keys on the (user, item) pair: a second completed payment for the
// same item refreshes the existing grant instead of duplicating it.
func (r *grantRepository) Upsert(ctx context.Context, grant *models.AccessGrant) error {
	query := `
		INSERT INTO access_grants (id, user_id, content_id, template_id, transaction_id, granted_at, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (user_id, item_key) DO UPDATE SET
			transaction_id = EXCLUDED.transaction_id,
			granted_at = EXCLUDED.granted_at,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.ExecContext(ctx, query,
		grant.ID, grant.UserID, grant.ContentID, grant.TemplateID,
		grant.TransactionID, grant.GrantedAt, grant.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert access grant: %w", err)
	}

	return nil
}

func (r *grantRepository) Exists(ctx context.Context, userID string, item models.ItemRef, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM access_grants
			WHERE user_id = $1
			  AND (content_id = NULLIF($2, '') OR template_id = NULLIF($3, ''))
			  AND (expires_at IS NULL OR expires_at > $4)
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, item.ContentID, item.TemplateID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check access grant: %w", err)
	}

	return exists, nil
}

func (r *grantRepository) ListByUser(ctx context.Context, userID string) ([]*models.AccessGrant, error) {
	query := `
		SELECT id, user_id, COALESCE(content_id, ''), COALESCE(template_id, ''),
		       transaction_id, granted_at, expires_at
		FROM access_grants
		WHERE user_id = $1
		ORDER BY granted_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.AccessGrant
	for rows.Next() {
		var grant models.AccessGrant
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&grant.ID, &grant.UserID, &grant.ContentID, &grant.TemplateID,
			&grant.TransactionID, &grant.GrantedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan access grant: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			grant.ExpiresAt = &t
		}
		grants = append(grants, &grant)
	}

	return grants, rows.Err()
}
