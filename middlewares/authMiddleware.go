package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/utils"
)

const staffClaimKey = "staffClaim"

// AuthMiddleware requires a staff token, read from the "token" header or an
// Authorization bearer.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("token"))
		if token == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claim, err := utils.StaffFromToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetStaffInContext(ctx, claim)
		c.Request = c.Request.WithContext(ctx)
		c.Set(staffClaimKey, claim)
		c.Next()
	}
}

// StaffClaim returns the claim AuthMiddleware stored on the request.
func StaffClaim(c *gin.Context) *utils.StaffClaim {
	raw, _ := c.Get(staffClaimKey)
	claim, _ := raw.(*utils.StaffClaim)
	return claim
}
