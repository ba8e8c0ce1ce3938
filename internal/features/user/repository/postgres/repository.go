package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pocketlegal-backend/internal/features/user/models"
	"pocketlegal-backend/internal/features/user/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.UserRepository {
	return &postgresRepository{db: db}
}

// Create inserts a user. Wallet addresses are unique; concurrent first
// connections for the same wallet collapse into one row.
func (r *postgresRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, wallet_address, farcaster_id, email, phone)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (wallet_address) DO UPDATE SET
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.WalletAddress, user.FarcasterID, user.Email, user.Phone).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, wallet_address, COALESCE(farcaster_id, ''), COALESCE(email, ''),
		       COALESCE(phone, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresRepository) GetByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	query := `
		SELECT id, wallet_address, COALESCE(farcaster_id, ''), COALESCE(email, ''),
		       COALESCE(phone, ''), created_at, updated_at
		FROM users
		WHERE wallet_address = $1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, walletAddress))
}

func (r *postgresRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET farcaster_id = NULLIF($2, ''), email = NULLIF($3, ''), phone = NULLIF($4, ''),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.FarcasterID, user.Email, user.Phone)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

func (r *postgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.WalletAddress, &user.FarcasterID, &user.Email,
		&user.Phone, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
