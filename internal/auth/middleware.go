package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the middleware
const (
	ContextUserID    = "user_id"
	ContextEmail     = "email"
	ContextSessionID = "session_id"
)

// JWTMiddleware creates a middleware for JWT authentication with session validation
func JWTMiddleware(jwtManager *JWTManager, sessionStore *SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// rejects tokens from before the last server restart
		if !sessionStore.ValidateSession(claims.SessionID, claims.IssuedAt.Time) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session invalidated or server restarted"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextSessionID, claims.SessionID)

		c.Next()
	}
}

// OptionalJWTMiddleware checks for a JWT but doesn't require one
func OptionalJWTMiddleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			if claims, err := jwtManager.ValidateToken(parts[1]); err == nil {
				c.Set(ContextUserID, claims.UserID)
				c.Set(ContextEmail, claims.Email)
				c.Set(ContextSessionID, claims.SessionID)
			}
		}

		c.Next()
	}
}
