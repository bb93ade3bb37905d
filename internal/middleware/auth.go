package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/pkg/jwt"
	"github.com/tlemoine/signalmap/internal/pkg/response"
)

// Auth validates the gateway session token and stashes the user identity
// on the request context.
func Auth(cfg *jwt.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		// Accept both "Bearer <token>" and a raw token.
		fields := strings.Fields(authHeader)
		tokenString := authHeader
		if len(fields) == 2 && strings.EqualFold(fields[0], "Bearer") {
			tokenString = fields[1]
		}

		claims, err := jwt.ValidateToken(tokenString, cfg)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userLabel", claims.Label)
		c.Next()
	}
}
