package handlers

import (
	"database/sql"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/storage"
)

const identityContextKey = "identity"

// sessionToken extracts the session id from the Authorization header or the
// session cookie.
func sessionToken(c *gin.Context) string {
	token := strings.TrimSpace(c.GetHeader("Authorization"))
	const bearerPrefix = "Bearer "
	if strings.HasPrefix(token, bearerPrefix) {
		token = strings.TrimSpace(strings.TrimPrefix(token, bearerPrefix))
	}
	if token != "" {
		return token
	}
	if cookie, err := c.Cookie("session_id"); err == nil {
		return cookie
	}
	return ""
}

// RequireSession resolves the acting identity from the live session store on
// every request. A session row deleted by a logout in any tab makes every
// other tab sharing the cookie 401 on its next call; nothing is cached
// between requests.
func RequireSession(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		identity, err := storage.ResolveIdentity(db, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(identityContextKey, identity)
		c.Set("session_id", token)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by RequireSession.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

// RequireSameOrigin rejects cross-origin mutating requests whose Origin
// header does not match an allowed origin. Requests without an Origin header
// (curl, server-to-server) pass; browsers always send one on cross-origin
// writes.
func RequireSameOrigin() gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(strings.TrimRight(origin, "/"))
		if origin != "" {
			allowed[origin] = true
		}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		if origin == "" {
			c.Next()
			return
		}
		if allowed[origin] {
			c.Next()
			return
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host == c.Request.Host {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Cross-origin request rejected"})
	}
}

// ValidateSession validates user session
// @Summary Validate session
// @Description Validate user session token against the live session store
// @Tags Authentication
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} models.ValidateSessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/validate-session [post]
func ValidateSession(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Authorization header"})
			return
		}

		identity, err := storage.ResolveIdentity(db, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.JSON(http.StatusOK, models.ValidateSessionResponse{
			Message:   "Session validated",
			SessionID: token,
			Email:     identity.Email,
			Role:      identity.Role,
			CompanyID: identity.CompanyID,
		})
	}
}
