package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pocketlegal-backend/internal/common/cache"
	"pocketlegal-backend/internal/common/logger"
	"pocketlegal-backend/internal/features/content/models"
	"pocketlegal-backend/internal/features/content/repository"
)

var (
	ErrContentNotFound  = errors.New("content not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidCategory  = errors.New("invalid category")
)

const catalogCacheTTL = 5 * time.Minute

// ContentService serves the read-only legal catalog.
type ContentService interface {
	ListContent(ctx context.Context, category string) ([]*models.LegalContent, error)
	GetContent(ctx context.Context, id string) (*models.LegalContent, error)

	ListTemplates(ctx context.Context, category string) ([]*models.DocumentTemplate, error)
	GetTemplate(ctx context.Context, id string) (*models.DocumentTemplate, error)

	// ContentPrice and TemplatePrice feed the purchase orchestrator.
	ContentPrice(ctx context.Context, id string) (int64, error)
	TemplatePrice(ctx context.Context, id string) (int64, error)
}

type contentService struct {
	repo  repository.ContentRepository
	cache *cache.Service
}

func NewContentService(repo repository.ContentRepository, cache *cache.Service) ContentService {
	return &contentService{repo: repo, cache: cache}
}

func (s *contentService) ListContent(ctx context.Context, category string) ([]*models.LegalContent, error) {
	if category != "" && !models.ValidCategory(category) {
		return nil, ErrInvalidCategory
	}

	var items []*models.LegalContent
	key := fmt.Sprintf("catalog:content:%s", category)
	err := s.cache.GetOrSet(ctx, key, &items, catalogCacheTTL, func() (interface{}, error) {
		return s.repo.ListContent(ctx, category)
	})
	if err == nil {
		return items, nil
	}

	// Cache trouble must not take the catalog down.
	logger.Warn().Err(err).Str("key", key).Msg("catalog cache unavailable, falling back to database")
	return s.repo.ListContent(ctx, category)
}

func (s *contentService) GetContent(ctx context.Context, id string) (*models.LegalContent, error) {
	item, err := s.repo.GetContentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrContentNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *contentService) ListTemplates(ctx context.Context, category string) ([]*models.DocumentTemplate, error) {
	if category != "" && !models.ValidCategory(category) {
		return nil, ErrInvalidCategory
	}

	var items []*models.DocumentTemplate
	key := fmt.Sprintf("catalog:templates:%s", category)
	err := s.cache.GetOrSet(ctx, key, &items, catalogCacheTTL, func() (interface{}, error) {
		return s.repo.ListTemplates(ctx, category)
	})
	if err == nil {
		return items, nil
	}

	logger.Warn().Err(err).Str("key", key).Msg("catalog cache unavailable, falling back to database")
	return s.repo.ListTemplates(ctx, category)
}

func (s *contentService) GetTemplate(ctx context.Context, id string) (*models.DocumentTemplate, error) {
	item, err := s.repo.GetTemplateByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *contentService) ContentPrice(ctx context.Context, id string) (int64, error) {
	item, err := s.GetContent(ctx, id)
	if err != nil {
		return 0, err
	}
	return item.PriceCents, nil
}

func (s *contentService) TemplatePrice(ctx context.Context, id string) (int64, error) {
	item, err := s.GetTemplate(ctx, id)
	if err != nil {
		return 0, err
	}
	return item.PriceCents, nil
}
