package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketlegal-backend/internal/common/errors"
	commonmw "pocketlegal-backend/internal/common/middleware"
	"pocketlegal-backend/internal/common/logger"
	"pocketlegal-backend/internal/features/content/models"
	"pocketlegal-backend/internal/features/content/service"
	paymentmodels "pocketlegal-backend/internal/features/payment/models"
	authmw "pocketlegal-backend/internal/features/walletauth/middleware"
)

// AccessChecker answers whether the caller unlocked an item. The payment
// service implements it.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID string, item paymentmodels.ItemRef) (bool, error)
}

type ContentHandler struct {
	service service.ContentService
	access  AccessChecker
}

func NewContentHandler(service service.ContentService, access AccessChecker) *ContentHandler {
	return &ContentHandler{service: service, access: access}
}

func (h *ContentHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	content := router.Group("/content")
	content.Use(auth)
	{
		content.GET("", h.ListContent)
		content.GET("/:id", h.GetContent)
	}

	templates := router.Group("/templates")
	templates.Use(auth)
	{
		templates.GET("", h.ListTemplates)
		templates.GET("/:id", h.GetTemplate)
	}
}

// @Summary List legal content
// @Description List active rights cards, guides and checklists. Paid payloads are withheld until purchased.
// @Tags content
// @Produce json
// @Security BearerAuth
// @Param category query string false "Filter by category" Enums(tenant, employment, consumer, traffic, arrests)
// @Success 200 {array} models.ContentResponse "Catalog"
// @Failure 400 {object} models.ErrorResponse "Unknown category"
// @Router /content [get]
func (h *ContentHandler) ListContent(c *gin.Context) {
	items, err := h.service.ListContent(c.Request.Context(), c.Query("category"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			commonmw.RespondError(c, apperrors.NewInvalidRequestError("unknown category"))
			return
		}
		commonmw.RespondError(c, err)
		return
	}

	userID := authmw.UserID(c)
	resp := make([]*models.ContentResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, h.toContentResponse(c.Request.Context(), userID, item))
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get one content item
// @Description Fetch a single item. The body is included only when the item is free or the caller purchased it.
// @Tags content
// @Produce json
// @Security BearerAuth
// @Param id path string true "Content id"
// @Success 200 {object} models.ContentResponse "Item"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /content/{id} [get]
func (h *ContentHandler) GetContent(c *gin.Context) {
	item, err := h.service.GetContent(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrContentNotFound) {
			commonmw.RespondError(c, apperrors.NewNotFoundError("content", c.Param("id")))
			return
		}
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toContentResponse(c.Request.Context(), authmw.UserID(c), item))
}

// @Summary List document templates
// @Tags content
// @Produce json
// @Security BearerAuth
// @Param category query string false "Filter by category" Enums(tenant, employment, consumer, traffic, arrests)
// @Success 200 {array} models.TemplateResponse "Templates"
// @Failure 400 {object} models.ErrorResponse "Unknown category"
// @Router /templates [get]
func (h *ContentHandler) ListTemplates(c *gin.Context) {
	items, err := h.service.ListTemplates(c.Request.Context(), c.Query("category"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			commonmw.RespondError(c, apperrors.NewInvalidRequestError("unknown category"))
			return
		}
		commonmw.RespondError(c, err)
		return
	}

	userID := authmw.UserID(c)
	resp := make([]*models.TemplateResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, h.toTemplateResponse(c.Request.Context(), userID, item))
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get one document template
// @Tags content
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template id"
// @Success 200 {object} models.TemplateResponse "Template"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /templates/{id} [get]
func (h *ContentHandler) GetTemplate(c *gin.Context) {
	item, err := h.service.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			commonmw.RespondError(c, apperrors.NewNotFoundError("template", c.Param("id")))
			return
		}
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toTemplateResponse(c.Request.Context(), authmw.UserID(c), item))
}

func (h *ContentHandler) toContentResponse(ctx context.Context, userID string, item *models.LegalContent) *models.ContentResponse {
	resp := &models.ContentResponse{
		ID:          item.ID,
		Title:       item.Title,
		ContentType: item.ContentType,
		Category:    item.Category,
		PriceCents:  item.PriceCents,
		Unlocked:    h.unlocked(ctx, userID, paymentmodels.ItemRef{ContentID: item.ID}, item.PriceCents),
	}
	if resp.Unlocked {
		resp.Content = item.Content
	}
	return resp
}

func (h *ContentHandler) toTemplateResponse(ctx context.Context, userID string, item *models.DocumentTemplate) *models.TemplateResponse {
	resp := &models.TemplateResponse{
		ID:             item.ID,
		Name:           item.Name,
		Description:    item.Description,
		Category:       item.Category,
		RequiredFields: item.RequiredFields,
		PriceCents:     item.PriceCents,
		Unlocked:       h.unlocked(ctx, userID, paymentmodels.ItemRef{TemplateID: item.ID}, item.PriceCents),
	}
	if resp.Unlocked {
		resp.TemplateContent = item.TemplateContent
	}
	return resp
}

// unlocked fails closed: a ledger error hides the payload instead of
// leaking it.
func (h *ContentHandler) unlocked(ctx context.Context, userID string, item paymentmodels.ItemRef, priceCents int64) bool {
	if priceCents == 0 {
		return true
	}
	granted, err := h.access.HasAccess(ctx, userID, item)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Str("item", item.Key()).Msg("access check failed")
		return false
	}
	return granted
}
