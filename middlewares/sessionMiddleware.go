package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
)

// SessionMiddleware resolves the opaque session token (redis) into the
// authenticated user and hydrates the request context with the identity keys
// every model operation reads: vendor id, user id, display name. Requests
// without a token pass through; route guards reject them downstream.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "invalid or expired session"}})
			c.Abort()
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "unknown session user"}})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		ctx = utils.SetVendorIdInContext(ctx, user.VendorId)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetIsAdminInContext(ctx, user.Role == models.UserRoleAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
