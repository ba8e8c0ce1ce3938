package repository

import (
	"context"
	"errors"

	"pocketlegal-backend/internal/features/document/models"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.GeneratedDocument) error
	GetByID(ctx context.Context, id string) (*models.GeneratedDocument, error)
	ListByUser(ctx context.Context, userID string) ([]*models.GeneratedDocument, error)
}
