package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pocketlegal-backend/internal/features/document/models"
	"pocketlegal-backend/internal/features/document/repository"
)

type documentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) repository.DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *models.GeneratedDocument) error {
	inputs, err := json.Marshal(doc.InputData)
	if err != nil {
		return fmt.Errorf("failed to encode input data: %w", err)
	}

	query := `
		INSERT INTO generated_documents (id, user_id, template_id, document_content, input_data, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	err = r.db.QueryRowContext(ctx, query,
		doc.ID, doc.UserID, doc.TemplateID, doc.DocumentContent, inputs,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create generated document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*models.GeneratedDocument, error) {
	query := `
		SELECT id, user_id, template_id, document_content, input_data, created_at
		FROM generated_documents
		WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get generated document: %w", err)
	}

	return doc, nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID string) ([]*models.GeneratedDocument, error) {
	query := `
		SELECT id, user_id, template_id, document_content, input_data, created_at
		FROM generated_documents
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.GeneratedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generated document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generated documents: %w", err)
	}

	return docs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.GeneratedDocument, error) {
	var doc models.GeneratedDocument
	var inputs []byte

	err := row.Scan(&doc.ID, &doc.UserID, &doc.TemplateID, &doc.DocumentContent, &inputs, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(inputs) > 0 {
		if err := json.Unmarshal(inputs, &doc.InputData); err != nil {
			return nil, fmt.Errorf("failed to decode input data: %w", err)
		}
	}

	return &doc, nil
}
