package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/services"
)

// AcquireLock takes or renews an exclusive advisory lock on a resource key.
// @Summary Acquire a resource lock
// @Tags locks
// @Accept json
// @Produce json
// @Param request body models.LockAcquireRequest true "Lock request"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.LockConflictResponse
// @Router /api/locks/acquire [post]
func AcquireLock(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.LockAcquireRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		ttl := time.Duration(req.TTLSeconds) * time.Second
		lock, err := services.AcquireLock(db, identity, req.ResourceKey, req.ProjectID, req.Context, ttl)
		if err != nil {
			renderServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"acquired":   true,
			"lock":       lock,
			"expires_at": lock.ExpiresAt,
		})
	}
}

// ReleaseLock releases the caller's lock. Releasing someone else's lock or a
// missing lock is a quiet no-op.
// @Summary Release a resource lock
// @Tags locks
// @Accept json
// @Produce json
// @Param request body models.LockReleaseRequest true "Release request"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Router /api/locks/release [post]
func ReleaseLock(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.LockReleaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if err := services.ReleaseLock(db, identity, req.ResourceKey); err != nil {
			renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"released": true})
	}
}

// ForceUnlock lets an admin of the lock's project's company clear any lock.
// The audit entry is written even when the lock was already gone.
// @Summary Force-unlock a resource
// @Tags locks
// @Accept json
// @Produce json
// @Param request body models.LockReleaseRequest true "Resource key"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/locks/force_unlock [post]
func ForceUnlock(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.LockReleaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if err := services.ForceUnlock(db, identity, req.ResourceKey); err != nil {
			renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"forced": true})
	}
}

// LockStatus reports whether a resource key is currently locked and by whom.
// @Summary Lock status
// @Tags locks
// @Produce json
// @Param resource_key query string true "Resource key"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Router /api/locks/status [get]
func LockStatus(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		resourceKey := c.Query("resource_key")
		if resourceKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "resource_key is required"})
			return
		}

		lock, err := services.LockStatus(db, resourceKey)
		if err != nil {
			renderServiceError(c, err)
			return
		}
		if lock == nil {
			c.JSON(http.StatusOK, gin.H{"locked": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"locked":     true,
			"owner":      lock.HolderID == identity.UserID,
			"holder":     lock.HolderEmail,
			"context":    lock.Context,
			"expires_at": lock.ExpiresAt,
		})
	}
}
