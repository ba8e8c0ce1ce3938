package repository

import (
	"context"
	"errors"

	"pocketlegal-backend/internal/features/content/models"
)

var (
	ErrContentNotFound  = errors.New("content not found")
	ErrTemplateNotFound = errors.New("template not found")
)

// ContentRepository is read-only: the catalog is managed out of band.
type ContentRepository interface {
	ListContent(ctx context.Context, category string) ([]*models.LegalContent, error)
	GetContentByID(ctx context.Context, id string) (*models.LegalContent, error)

	ListTemplates(ctx context.Context, category string) ([]*models.DocumentTemplate, error)
	GetTemplateByID(ctx context.Context, id string) (*models.DocumentTemplate, error)
}
