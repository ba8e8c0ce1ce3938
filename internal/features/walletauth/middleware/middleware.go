package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "pocketlegal-backend/internal/common/errors"
	commonmw "pocketlegal-backend/internal/common/middleware"
	"pocketlegal-backend/internal/features/walletauth/service"
)

const (
	ContextUserID        = "user_id"
	ContextWalletAddress = "wallet_address"
	ContextSessionToken  = "session_token"
)

// RequireSession resolves the bearer token into a wallet session and puts
// the user identity on the request context.
func RequireSession(auth *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			commonmw.RespondError(c, apperrors.NewUnauthorizedError("bearer token required"))
			return
		}

		session, err := auth.Session(c.Request.Context(), token)
		if err != nil {
			commonmw.RespondError(c, apperrors.NewUnauthorizedError("invalid or expired session"))
			return
		}

		c.Set(ContextUserID, session.UserID)
		c.Set(ContextWalletAddress, session.WalletAddress)
		c.Set(ContextSessionToken, token)
		c.Next()
	}
}

// UserID returns the authenticated user id set by RequireSession.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// WalletAddress returns the authenticated wallet address.
func WalletAddress(c *gin.Context) string {
	return c.GetString(ContextWalletAddress)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
