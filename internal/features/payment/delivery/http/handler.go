package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketlegal-backend/internal/common/errors"
	commonmw "pocketlegal-backend/internal/common/middleware"
	"pocketlegal-backend/internal/features/payment/models"
	"pocketlegal-backend/internal/features/payment/service"
	authmw "pocketlegal-backend/internal/features/walletauth/middleware"
)

type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(service service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes mounts the purchase and ledger endpoints. Every route
// requires a wallet session.
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	purchases := router.Group("/purchases")
	purchases.Use(auth)
	{
		purchases.POST("", h.Purchase)
		purchases.GET("/state", h.PurchaseState)
		purchases.POST("/retry", h.Retry)
		purchases.POST("/cancel", h.Cancel)
	}

	me := router.Group("/users/me")
	me.Use(auth)
	{
		me.GET("/transactions", h.Transactions)
		me.GET("/access", h.Grants)
		me.GET("/spent", h.TotalSpent)
	}
}

// @Summary Purchase an item
// @Description Run one purchase attempt end to end: price check, pending transaction, balance check, single payment submission, completion and access grant.
// @Tags purchases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PurchaseRequest true "Item and amount"
// @Success 200 {object} models.PurchaseResult "Purchase outcome"
// @Failure 400 {object} commonmw.ErrorResponse "Invalid request or amount mismatch"
// @Failure 402 {object} commonmw.ErrorResponse "Insufficient funds or payment rejected"
// @Failure 409 {object} commonmw.ErrorResponse "Purchase already in progress"
// @Failure 504 {object} commonmw.ErrorResponse "Payment submission timed out"
// @Router /purchases [post]
func (h *PaymentHandler) Purchase(c *gin.Context) {
	h.runPurchase(c, h.service.Purchase)
}

// @Summary Retry a failed purchase
// @Description Re-run a purchase that ended in an error, starting from a fresh balance check. Only a failed attempt can be retried.
// @Tags purchases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PurchaseRequest true "Item and amount"
// @Success 200 {object} models.PurchaseResult "Purchase outcome"
// @Failure 400 {object} commonmw.ErrorResponse "Nothing to retry"
// @Router /purchases/retry [post]
func (h *PaymentHandler) Retry(c *gin.Context) {
	h.runPurchase(c, h.service.Retry)
}

func (h *PaymentHandler) runPurchase(c *gin.Context, attempt func(ctx context.Context, req *models.PurchaseRequest) *models.PurchaseResult) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		commonmw.RespondError(c, apperrors.NewInvalidRequestError("amount_cents and item are required"))
		return
	}
	req.UserID = authmw.UserID(c)
	req.WalletAddress = authmw.WalletAddress(c)

	result := attempt(c.Request.Context(), &req)
	if !result.Success {
		commonmw.RespondError(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Purchase state for an item
// @Description Report the purchase flow state for one item, reconciled against the persisted transaction and grant.
// @Tags purchases
// @Produce json
// @Security BearerAuth
// @Param content_id query string false "Content id"
// @Param template_id query string false "Template id"
// @Success 200 {object} models.StateResponse "Current state"
// @Failure 400 {object} commonmw.ErrorResponse "Invalid item reference"
// @Router /purchases/state [get]
func (h *PaymentHandler) PurchaseState(c *gin.Context) {
	item, ok := itemFromQuery(c)
	if !ok {
		return
	}

	resp, err := h.service.PurchaseState(c.Request.Context(), authmw.UserID(c), item)
	if err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a purchase attempt
// @Description Abandon an in-progress purchase flow. A payment that was already submitted is not stopped.
// @Tags purchases
// @Produce json
// @Security BearerAuth
// @Param content_id query string false "Content id"
// @Param template_id query string false "Template id"
// @Success 204 "Flow abandoned"
// @Failure 400 {object} commonmw.ErrorResponse "Invalid item reference or flow already finished"
// @Router /purchases/cancel [post]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	item, ok := itemFromQuery(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), authmw.UserID(c), item); err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Transaction history
// @Description List the caller's payment attempts, newest first.
// @Tags purchases
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Transaction "Transactions"
// @Router /users/me/transactions [get]
func (h *PaymentHandler) Transactions(c *gin.Context) {
	txs, err := h.service.Transactions(c.Request.Context(), authmw.UserID(c))
	if err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, txs)
}

// @Summary Access grants
// @Description List the items the caller has unlocked.
// @Tags purchases
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AccessGrant "Grants"
// @Router /users/me/access [get]
func (h *PaymentHandler) Grants(c *gin.Context) {
	grants, err := h.service.Grants(c.Request.Context(), authmw.UserID(c))
	if err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, grants)
}

// @Summary Total spent
// @Description Sum of the caller's completed transactions, in cents. Display only.
// @Tags purchases
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.TotalSpentResponse "Total"
// @Router /users/me/spent [get]
func (h *PaymentHandler) TotalSpent(c *gin.Context) {
	userID := authmw.UserID(c)
	total, err := h.service.TotalSpent(c.Request.Context(), userID)
	if err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TotalSpentResponse{UserID: userID, TotalSpentCents: total})
}

func itemFromQuery(c *gin.Context) (models.ItemRef, bool) {
	item := models.ItemRef{
		ContentID:  c.Query("content_id"),
		TemplateID: c.Query("template_id"),
	}
	if err := item.Validate(); err != nil {
		commonmw.RespondError(c, apperrors.NewInvalidRequestError(err.Error()))
		return models.ItemRef{}, false
	}
	return item, true
}
