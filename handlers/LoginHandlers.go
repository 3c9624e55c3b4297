package handlers

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"backend/models"
	"backend/repository"
	"backend/storage"
	"backend/utils"
)

func sessionLifetime() time.Duration {
	return 24 * time.Hour
}

// LoginHandler handles user authentication
// @Summary Login user
// @Description Authenticate user with email/password and create a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/login [post]
func LoginHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
			return
		}

		user, err := storage.GetUserByEmail(db, req.Email)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if !utils.ValidatePassword(user.Password, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if user.Suspended {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is suspended"})
			return
		}

		profile, err := storage.GetProfileForUser(db, user.ID)
		if err != nil || !profile.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "No active company profile"})
			return
		}

		now := time.Now()
		session := &models.Session{
			SessionID: repository.GenerateSessionID(),
			UserID:    user.ID,
			HostName:  user.Email,
			IPAddress: c.ClientIP(),
			CreatedAt: now,
			ExpiresAt: now.Add(sessionLifetime()),
		}
		allowMultiple := os.Getenv("ALLOW_MULTIPLE_SESSIONS") != "false"
		if err := storage.SaveSession(db, session, allowMultiple); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session", "details": err.Error()})
			return
		}

		accessToken, err := utils.GenerateJWT(user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		refreshToken, err := utils.GenerateRefreshToken(user.Email, session.SessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate refresh token"})
			return
		}

		c.SetCookie("session_id", session.SessionID, int(sessionLifetime().Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, models.LoginResponse{
			Message:      "User successfully logged in",
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			SessionID:    session.SessionID,
			Role:         profile.Role,
			CompanyID:    profile.CompanyID,
		})
	}
}

// RefreshTokenHandler exchanges a refresh token for a new access token. The
// refresh token is bound to one session; a session row deleted by logout
// invalidates the refresh token with it.
// @Summary Refresh access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} object
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/refresh-token [post]
func RefreshTokenHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, "Refresh token is required", http.StatusBadRequest)
			return
		}

		parsedToken, err := utils.ValidateJWT(req.RefreshToken)
		if err != nil {
			utils.ErrorResponse(c, "Invalid or expired refresh token", http.StatusUnauthorized)
			return
		}
		claims, ok := parsedToken.Claims.(jwt.MapClaims)
		if !ok {
			utils.ErrorResponse(c, "Invalid token claims", http.StatusUnauthorized)
			return
		}
		if tokenType, _ := claims["type"].(string); tokenType != "refresh" {
			utils.ErrorResponse(c, "Invalid token type", http.StatusUnauthorized)
			return
		}
		sessionID, _ := claims["sessionId"].(string)
		email, _ := claims["email"].(string)
		if sessionID == "" || email == "" {
			utils.ErrorResponse(c, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		// The session must still be live; refresh cannot resurrect a logout.
		identity, err := storage.ResolveIdentity(db, sessionID)
		if err != nil || identity.Email != email {
			utils.ErrorResponse(c, "Session not found or expired", http.StatusUnauthorized)
			return
		}

		accessToken, err := utils.GenerateJWT(identity.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": accessToken,
			"session_id":   sessionID,
		})
	}
}

// LogoutHandler deletes the caller's session row. Every other browser tab
// sharing the same cookie becomes unauthorized on its next write.
// @Summary Logout
// @Tags Authentication
// @Success 200 {object} models.ErrorResponse
// @Router /api/logout [post]
func LogoutHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No session to log out"})
			return
		}
		if err := storage.DeleteSession(db, token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session", "details": err.Error()})
			return
		}
		c.SetCookie("session_id", "", -1, "/", "", false, true)
		utils.SuccessResponse(c, "Logged out", http.StatusOK)
	}
}

// LogoutAllDevicesHandler removes every session for the calling user.
// @Summary Logout from all devices
// @Tags Authentication
// @Success 200 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/logout-all [post]
func LogoutAllDevicesHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if err := storage.DeleteUserSessions(db, identity.UserID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete sessions", "details": err.Error()})
			return
		}
		c.SetCookie("session_id", "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out everywhere"})
	}
}
