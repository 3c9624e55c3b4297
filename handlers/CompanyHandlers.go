package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"backend/models"
)

// GetCompanies lists all tenant companies. Superadmin only.
// @Summary List companies
// @Tags companies
// @Produce json
// @Success 200 {array} models.Company
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/companies [get]
func GetCompanies(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !identity.IsSuperadmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Superadmin required"})
			return
		}

		companies := []models.Company{}
		if err := gormDB.Order("name").Find(&companies).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying companies", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, companies)
	}
}

// CreateCompany creates a new tenant. Superadmin only; companies are never
// hard-deleted afterwards, only deactivated.
// @Summary Create a company
// @Tags companies
// @Accept json
// @Produce json
// @Param request body models.Company true "Company"
// @Success 200 {object} models.Company
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/companies [post]
func CreateCompany(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !identity.IsSuperadmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Superadmin required"})
			return
		}

		var company models.Company
		if err := c.ShouldBindJSON(&company); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if company.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Company name is required"})
			return
		}
		company.ID = 0
		company.IsActive = true

		if err := gormDB.Create(&company).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create company", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, company)
	}
}

// SetCompanyActive flips a tenant's active flag. Superadmin only.
// @Summary Activate or deactivate a company
// @Tags companies
// @Accept json
// @Produce json
// @Param id path int true "Company ID"
// @Success 200 {object} models.Company
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/companies/{id}/active [put]
func SetCompanyActive(gormDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !identity.IsSuperadmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Superadmin required"})
			return
		}

		var body struct {
			IsActive bool `json:"is_active"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		var company models.Company
		if err := gormDB.First(&company, "id = ?", c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
			return
		}
		company.IsActive = body.IsActive
		if err := gormDB.Save(&company).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update company", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, company)
	}
}
