package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-booking/pkg/utils"
)

// UserIDKey holds the caller's profile id in the gin context.
const UserIDKey = "userId"

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Fallback for clients that cannot set headers.
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.JSON(401, gin.H{"error": "Authorization header or token query parameter required", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		userID, err := utils.SubjectFromToken(tokenString, secret)
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid token", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated caller, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
