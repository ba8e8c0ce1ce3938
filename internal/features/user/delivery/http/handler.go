package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketlegal-backend/internal/common/errors"
	commonmw "pocketlegal-backend/internal/common/middleware"
	"pocketlegal-backend/internal/features/user/models"
	"pocketlegal-backend/internal/features/user/service"
	authmw "pocketlegal-backend/internal/features/walletauth/middleware"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	me := router.Group("/users/me")
	me.Use(auth)
	{
		me.GET("", h.GetProfile)
		me.PATCH("", h.UpdateProfile)
	}
}

// @Summary Current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserResponse "Profile"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := authmw.UserID(c)
	resp, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			commonmw.RespondError(c, apperrors.NewNotFoundError("user", userID))
			return
		}
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update profile
// @Description Update optional contact fields. The wallet address is fixed at first connection.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UpdateProfileRequest true "Fields to change"
// @Success 200 {object} models.UserResponse "Updated profile"
// @Failure 400 {object} models.ErrorResponse "Invalid body"
// @Router /users/me [patch]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		commonmw.RespondError(c, apperrors.NewInvalidRequestError("invalid profile payload"))
		return
	}

	userID := authmw.UserID(c)
	resp, err := h.service.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			commonmw.RespondError(c, apperrors.NewNotFoundError("user", userID))
			return
		}
		commonmw.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
