package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"backend/models"
	"backend/services"
)

// GetQuotes lists the caller's company quotes, newest first.
// @Summary List quotes
// @Tags quotes
// @Produce json
// @Success 200 {array} models.Quote
// @Failure 401 {object} models.ErrorResponse
// @Router /api/quotes [get]
func GetQuotes(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		quotes := []models.Quote{}
		query := gormDB.Order("created_at DESC")
		if !identity.IsSuperadmin() {
			query = query.Where("company_id = ?", identity.CompanyID)
		}
		if projectID := c.Query("project_id"); projectID != "" {
			query = query.Where("project_id = ?", projectID)
		}
		if err := query.Find(&quotes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying quotes", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, quotes)
	}
}

// CreateQuote files a manual quote record against a project in the caller's
// company.
// @Summary Create a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param request body models.QuoteCreateRequest true "Quote"
// @Success 200 {object} models.Quote
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/quotes/create [post]
func CreateQuote(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.QuoteCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.ProjectID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
			return
		}

		var project models.Project
		if err := gormDB.Table("projects").Select("id, company_id").
			Where("id = ?", req.ProjectID).Take(&project).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		if err := services.Authorize(identity, services.CapabilityWrite, project.CompanyID); err != nil {
			renderServiceError(c, err)
			return
		}

		quote := models.Quote{
			CompanyID:    project.CompanyID,
			ProjectID:    req.ProjectID,
			SupplierName: req.SupplierName,
			Source:       "manual",
			Currency:     req.Currency,
			Data:         req.Data,
		}
		if quote.Data == nil {
			quote.Data = models.JSONMap{}
		}
		if err := gormDB.Create(&quote).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create quote", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, quote)
	}
}
