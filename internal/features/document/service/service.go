package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "pocketlegal-backend/internal/common/errors"
	"pocketlegal-backend/internal/common/logger"
	contentmodels "pocketlegal-backend/internal/features/content/models"
	"pocketlegal-backend/internal/features/document/models"
	"pocketlegal-backend/internal/features/document/repository"
	paymentmodels "pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/platform/gemini"
)

const draftSystemPrompt = "You are a legal document specialist who creates professional, " +
	"legally sound document templates. Always include appropriate disclaimers and " +
	"encourage users to have documents reviewed by qualified attorneys."

// Templates resolves the purchased template being drafted from.
type Templates interface {
	GetTemplate(ctx context.Context, id string) (*contentmodels.DocumentTemplate, error)
}

// Access answers whether the caller unlocked the template.
type Access interface {
	HasAccess(ctx context.Context, userID string, item paymentmodels.ItemRef) (bool, error)
}

type DocumentService interface {
	// Generate drafts a document from a purchased template. Drafting failures
	// never touch payment state and the call is safe to retry.
	Generate(ctx context.Context, userID string, req *models.GenerateRequest) (*models.GeneratedDocument, error)

	GetDocument(ctx context.Context, userID, id string) (*models.GeneratedDocument, error)
	ListDocuments(ctx context.Context, userID string) ([]*models.GeneratedDocument, error)
}

type documentService struct {
	repo      repository.DocumentRepository
	templates Templates
	access    Access
	generator gemini.Generator
}

func NewDocumentService(
	repo repository.DocumentRepository,
	templates Templates,
	access Access,
	generator gemini.Generator,
) DocumentService {
	return &documentService{
		repo:      repo,
		templates: templates,
		access:    access,
		generator: generator,
	}
}

func (s *documentService) Generate(ctx context.Context, userID string, req *models.GenerateRequest) (*models.GeneratedDocument, error) {
	template, err := s.templates.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("template", req.TemplateID)
	}

	if template.PriceCents > 0 {
		item := paymentmodels.ItemRef{TemplateID: template.ID}
		granted, err := s.access.HasAccess(ctx, userID, item)
		if err != nil {
			return nil, apperrors.NewPersistenceError("check template access", err)
		}
		if !granted {
			return nil, apperrors.NewForbiddenError("template has not been purchased")
		}
	}

	if missing := missingFields(template.RequiredFields, req.Inputs); len(missing) > 0 {
		return nil, apperrors.NewInvalidRequestError("missing required fields: " + strings.Join(missing, ", "))
	}

	draft, err := s.generator.Generate(ctx, draftSystemPrompt, buildDraftPrompt(template.Name, req.Inputs))
	if err != nil {
		logger.Error().Err(err).Str("template_id", template.ID).Msg("document drafting failed")
		return nil, apperrors.Wrap(err, apperrors.ErrCodeGeneration, "Failed to generate document")
	}

	doc := &models.GeneratedDocument{
		ID:              uuid.New().String(),
		UserID:          userID,
		TemplateID:      template.ID,
		DocumentContent: draft,
		InputData:       req.Inputs,
		CreatedAt:       time.Now(),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, apperrors.NewPersistenceError("store generated document", err)
	}

	logger.Info().
		Str("user_id", userID).
		Str("template_id", template.ID).
		Str("document_id", doc.ID).
		Msg("document generated")

	return doc, nil
}

func (s *documentService) GetDocument(ctx context.Context, userID, id string) (*models.GeneratedDocument, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFoundError("document", id)
	}
	// Ownership is checked, not trusted; a foreign id reads as absent.
	if doc.UserID != userID {
		return nil, apperrors.NewNotFoundError("document", id)
	}
	return doc, nil
}

func (s *documentService) ListDocuments(ctx context.Context, userID string) ([]*models.GeneratedDocument, error) {
	docs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list generated documents", err)
	}
	return docs, nil
}

func missingFields(required []string, inputs map[string]string) []string {
	var missing []string
	for _, field := range required {
		if strings.TrimSpace(inputs[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func buildDraftPrompt(templateName string, inputs map[string]string) string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Generate a " + templateName + " document using the following information:\n\n")
	for _, k := range keys {
		sb.WriteString(k + ": " + inputs[k] + "\n")
	}
	sb.WriteString(`
Requirements:
- Use proper legal document formatting
- Include all necessary legal language
- Make it professional but understandable
- Include placeholders for signatures and dates where appropriate
- Add a disclaimer that this is a template and legal advice should be sought

Format as a complete, ready-to-use document.`)

	return sb.String()
}
