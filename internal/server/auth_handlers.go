package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/G381N/BugBesty/internal/auth"
)

// login verifies credentials and issues a JWT token pair
func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := s.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		writeError(c, err)
		return
	}

	sessionID, err := auth.GenerateSessionID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	pair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Email, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}
	s.sessionStore.CreateSession(sessionID, user.ID, user.Email)
	s.authRateLimiter.RecordSuccess(c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"tokens": pair,
		"user":   user,
	})
}

// register creates a dashboard account
func (s *Server) register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Name     string `json:"name"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := s.users.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// refreshToken exchanges a valid refresh token for a new pair
func (s *Server) refreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	pair, err := s.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": pair})
}

// logout invalidates the session behind the presented token
func (s *Server) logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		if claims, err := s.jwtManager.ValidateToken(authHeader[7:]); err == nil {
			s.sessionStore.InvalidateSession(claims.SessionID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// getCurrentUser returns the authenticated user's profile
func (s *Server) getCurrentUser(c *gin.Context) {
	user, err := s.store.GetUser(c.Request.Context(), c.GetString(auth.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
