package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"pocketlegal-backend/internal/features/content/models"
	"pocketlegal-backend/internal/features/content/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.ContentRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ListContent(ctx context.Context, category string) ([]*models.LegalContent, error) {
	query := `
		SELECT id, title, content_type, category, content, price_cents, is_active, created_at, updated_at
		FROM legal_content
		WHERE is_active = TRUE
	`
	args := []interface{}{}
	if category != "" {
		query += " AND category = $1"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var items []*models.LegalContent
	for rows.Next() {
		var item models.LegalContent
		if err := rows.Scan(
			&item.ID, &item.Title, &item.ContentType, &item.Category, &item.Content,
			&item.PriceCents, &item.IsActive, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

func (r *postgresRepository) GetContentByID(ctx context.Context, id string) (*models.LegalContent, error) {
	query := `
		SELECT id, title, content_type, category, content, price_cents, is_active, created_at, updated_at
		FROM legal_content
		WHERE id = $1 AND is_active = TRUE
	`

	var item models.LegalContent
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.Title, &item.ContentType, &item.Category, &item.Content,
		&item.PriceCents, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	return &item, nil
}

func (r *postgresRepository) ListTemplates(ctx context.Context, category string) ([]*models.DocumentTemplate, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), category, template_content,
		       required_fields, price_cents, is_active, created_at, updated_at
		FROM document_templates
		WHERE is_active = TRUE
	`
	args := []interface{}{}
	if category != "" {
		query += " AND category = $1"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var items []*models.DocumentTemplate
	for rows.Next() {
		var item models.DocumentTemplate
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Description, &item.Category, &item.TemplateContent,
			pq.Array(&item.RequiredFields), &item.PriceCents, &item.IsActive,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

func (r *postgresRepository) GetTemplateByID(ctx context.Context, id string) (*models.DocumentTemplate, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), category, template_content,
		       required_fields, price_cents, is_active, created_at, updated_at
		FROM document_templates
		WHERE id = $1 AND is_active = TRUE
	`

	var item models.DocumentTemplate
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.Name, &item.Description, &item.Category, &item.TemplateContent,
		pq.Array(&item.RequiredFields), &item.PriceCents, &item.IsActive,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return &item, nil
}
