package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketlegal-backend/internal/common/errors"
	commonmw "pocketlegal-backend/internal/common/middleware"
	authmw "pocketlegal-backend/internal/features/walletauth/middleware"
	"pocketlegal-backend/internal/features/walletauth/models"
	"pocketlegal-backend/internal/features/walletauth/service"
)

type AuthHandler struct {
	service *service.Service
}

func NewAuthHandler(service *service.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/nonce", h.IssueNonce)
		auth.POST("/verify", h.Verify)
	}

	session := router.Group("/auth")
	session.Use(authmw.RequireSession(h.service))
	{
		session.POST("/logout", h.Logout)
	}
}

// @Summary Request a sign-in nonce
// @Description Issue a one-time challenge the wallet must sign to connect.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.NonceRequest true "Wallet address"
// @Success 200 {object} models.NonceResponse "Challenge to sign"
// @Failure 400 {object} models.NonceResponse "Invalid wallet address"
// @Router /auth/nonce [post]
func (h *AuthHandler) IssueNonce(c *gin.Context) {
	var req models.NonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		commonmw.RespondError(c, apperrors.New(apperrors.ErrCodeValidation, "wallet_address is required"))
		return
	}

	resp, err := h.service.IssueNonce(c.Request.Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAddress) {
			commonmw.RespondError(c, apperrors.New(apperrors.ErrCodeValidation, "invalid wallet address"))
			return
		}
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Verify a signed nonce
// @Description Verify the wallet signature, create the user on first connection and open a session.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.VerifyRequest true "Signed challenge"
// @Success 200 {object} models.VerifyResponse "Session token"
// @Failure 401 {object} models.VerifyResponse "Invalid signature or expired nonce"
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		commonmw.RespondError(c, apperrors.New(apperrors.ErrCodeValidation, "wallet_address and signature are required"))
		return
	}

	resp, err := h.service.Verify(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAddress):
			commonmw.RespondError(c, apperrors.New(apperrors.ErrCodeValidation, "invalid wallet address"))
		case errors.Is(err, service.ErrInvalidSignature), errors.Is(err, service.ErrNonceExpired):
			commonmw.RespondError(c, apperrors.NewUnauthorizedError(err.Error()))
		default:
			commonmw.RespondError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Log out
// @Description Revoke the current session token.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 204 "Session revoked"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(authmw.ContextSessionToken)
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		commonmw.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
