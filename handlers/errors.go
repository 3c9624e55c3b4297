package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/services"
)

// renderServiceError maps control-layer errors onto the HTTP taxonomy:
// validation 400, tenant denial 403, workflow closed 403, missing entity 404,
// lock/version conflict 409 with the canonical state, anything else 500.
func renderServiceError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		return
	}

	var forbiddenErr *services.TenantForbiddenError
	if errors.As(err, &forbiddenErr) {
		if len(forbiddenErr.DeniedIDs) > 0 {
			c.JSON(http.StatusForbidden, models.ExportDeniedResponse{
				Error:            "Access denied",
				DeniedProjectIDs: forbiddenErr.DeniedIDs,
			})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if errors.Is(err, services.ErrWorkflowClosed) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Quote is closed for this action"})
		return
	}

	if errors.Is(err, services.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if errors.Is(err, services.ErrAccessNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Supplier access not found"})
		return
	}

	var lockErr *services.LockConflictError
	if errors.As(err, &lockErr) {
		response := models.LockConflictResponse{
			Code:        "lock_conflict",
			ResourceKey: lockErr.ResourceKey,
			Holder:      lockErr.Holder,
			Context:     lockErr.Context,
			ProjectID:   lockErr.ProjectID,
		}
		if lockErr.Project != nil {
			payload := models.NewProjectPayload(*lockErr.Project)
			response.Project = &payload
		}
		c.JSON(http.StatusConflict, response)
		return
	}

	var versionErr *services.VersionConflictError
	if errors.As(err, &versionErr) {
		c.JSON(http.StatusConflict, models.VersionConflictResponse{
			Code:          "version_conflict",
			ProjectID:     versionErr.ProjectID,
			Project:       models.NewProjectPayload(*versionErr.Project),
			ServerVersion: versionErr.ServerVersion,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
}
