package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartattend/backend/internal/service/session"
	"github.com/smartattend/backend/pkg/httputil"
)

// AuthMiddleware validates the JWT and its backing login session, then
// stores the caller's identity in the gin context.
func AuthMiddleware(authService *session.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Extract Token (Cookie or Header)
		tokenString, err := httputil.GetTokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		// 2. Stateless JWT check plus stateful session check
		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			httputil.ClearAuthCookie(c.Writer)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		// 3. Pass identity to handlers
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Set("auth_session_id", claims.SessionID)
		c.Next()
	}
}

// RequireRole rejects callers whose account role does not match. Must run
// after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
