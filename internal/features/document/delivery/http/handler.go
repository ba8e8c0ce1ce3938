package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketlegal-backend/internal/common/errors"
	commonmw "pocketlegal-backend/internal/common/middleware"
	"pocketlegal-backend/internal/features/document/models"
	"pocketlegal-backend/internal/features/document/service"
	authmw "pocketlegal-backend/internal/features/walletauth/middleware"
)

type DocumentHandler struct {
	service service.DocumentService
}

func NewDocumentHandler(service service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	docs := router.Group("/documents")
	docs.Use(auth)
	{
		docs.POST("", h.Generate)
		docs.GET("", h.ListDocuments)
		docs.GET("/:id", h.GetDocument)
	}
}

// @Summary Generate a document
// @Description Draft a document from a purchased template. Fails with 403 until the template is purchased; drafting failures are retryable and never affect payment state.
// @Tags documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.GenerateRequest true "Template and field values"
// @Success 201 {object} models.GeneratedDocument "Drafted document"
// @Failure 400 {object} models.ErrorResponse "Missing required fields"
// @Failure 403 {object} models.ErrorResponse "Template not purchased"
// @Failure 404 {object} models.ErrorResponse "Template not found"
// @Router /documents [post]
func (h *DocumentHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		commonmw.RespondError(c, apperrors.NewInvalidRequestError("template_id and inputs are required"))
		return
	}

	doc, err := h.service.Generate(c.Request.Context(), authmw.UserID(c), &req)
	if err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// @Summary List generated documents
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.GeneratedDocument "Documents, newest first"
// @Router /documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), authmw.UserID(c))
	if err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, docs)
}

// @Summary Get one generated document
// @Tags documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document id"
// @Success 200 {object} models.GeneratedDocument "Document"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), authmw.UserID(c), c.Param("id"))
	if err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}
