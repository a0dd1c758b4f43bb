package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
)

// AuthMiddleware accepts a JWT bearer token (mobile clients) and hydrates the
// same identity keys as SessionMiddleware, so handlers never care which
// credential arrived.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "malformed authorization header"}})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "invalid token"}})
			c.Abort()
			return
		}

		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "invalid token claims"}})
			c.Abort()
			return
		}

		user, err := models.GetUser(c.Request.Context(), claim.ID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "unknown token user"}})
			c.Abort()
			return
		}

		ctx := utils.SetVendorIdInContext(c.Request.Context(), claim.VendorId)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetIsAdminInContext(ctx, user.Role == models.UserRoleAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
