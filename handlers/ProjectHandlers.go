package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/repository"
	"backend/services"
	"backend/utils"
)

// FetchAllProjects lists the caller's company projects (all companies for
// superadmin).
// @Summary List projects
// @Tags projects
// @Produce json
// @Success 200 {array} models.ProjectPayload
// @Failure 401 {object} models.ErrorResponse
// @Router /api/projects [get]
func FetchAllProjects(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		query := `SELECT id, company_id, name, data, created_at, updated_at FROM projects`
		args := []interface{}{}
		if !identity.IsSuperadmin() {
			query += ` WHERE company_id = $1`
			args = append(args, identity.CompanyID)
		}
		query += ` ORDER BY updated_at DESC`

		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying projects", "details": err.Error()})
			return
		}
		defer rows.Close()

		payloads := []models.ProjectPayload{}
		for rows.Next() {
			var project models.Project
			if err := rows.Scan(&project.ID, &project.CompanyID, &project.Name, &project.Data,
				&project.CreatedAt, &project.UpdatedAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error scanning projects"})
				return
			}
			payloads = append(payloads, models.NewProjectPayload(project))
		}
		if err := rows.Err(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error reading projects"})
			return
		}

		c.JSON(http.StatusOK, payloads)
	}
}

// FetchProjectByID returns one project with its current version stamp.
// @Summary Fetch a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.ProjectPayload
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id} [get]
func FetchProjectByID(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		project, err := services.FetchProject(db, c.Param("id"))
		if err != nil {
			renderServiceError(c, err)
			return
		}
		if err := services.Authorize(identity, services.CapabilityRead, project.CompanyID); err != nil {
			renderServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.NewProjectPayload(*project))
	}
}

// CreateProject creates a new project owned by the caller's company.
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Param request body models.ProjectCreateRequest true "Project"
// @Success 200 {object} models.ProjectPayload
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/projects [post]
func CreateProject(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.ProjectCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Project name is required"})
			return
		}
		if identity.CompanyID == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Superadmin must act within a company to create projects"})
			return
		}
		if err := services.Authorize(identity, services.CapabilityWrite, identity.CompanyID); err != nil {
			renderServiceError(c, err)
			return
		}

		projectID := req.ID
		if projectID == "" {
			projectID = repository.GenerateProjectID(req.Name)
		}
		items := req.Items
		if items == nil {
			items = []interface{}{}
		}

		now := time.Now().UTC()
		project := models.Project{
			ID:        projectID,
			CompanyID: identity.CompanyID,
			Name:      req.Name,
			Data:      models.JSONMap{"id": projectID, "name": req.Name, "items": items},
			CreatedAt: now,
			UpdatedAt: now,
		}

		tx, err := db.Begin()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to begin transaction", "details": err.Error()})
			return
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT INTO projects (id, company_id, name, data, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			project.ID, project.CompanyID, project.Name, project.Data, now); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project", "details": err.Error()})
			return
		}
		if err := services.AppendAuditTx(tx, "project.create", "project", project.ID, identity, nil); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record audit entry"})
			return
		}
		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, models.NewProjectPayload(project))
	}
}

// UpdateProject applies a single project write through the mutation pipeline:
// tenant scope, lock check, optimistic version check, persist and audit run
// in one transaction, in that order.
// @Summary Update a project
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body models.ProjectUpdateRequest true "Update with base_version"
// @Success 200 {object} models.ProjectPayload
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.VersionConflictResponse
// @Router /api/projects/{id} [put]
func UpdateProject(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.ProjectUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		req.ID = c.Param("id")

		updated, err := services.ApplyProjectMutations(db, identity, []services.ProjectMutation{{
			ProjectID:   req.ID,
			Name:        req.Name,
			Items:       req.Items,
			Meta:        req.Meta,
			BaseVersion: req.BaseVersion,
		}}, "project.update")
		if err != nil {
			renderServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.NewProjectPayload(updated[0]))
	}
}

// BulkUpdateProjects applies several project writes as one all-or-nothing
// batch. A lock or version conflict on any sub-item rolls back every project
// in the batch.
// @Summary Bulk update projects
// @Tags projects
// @Accept json
// @Produce json
// @Param request body models.BulkProjectUpdateRequest true "Projects with base_version each"
// @Success 200 {object} object
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.VersionConflictResponse
// @Router /api/projects/bulk [post]
func BulkUpdateProjects(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.BulkProjectUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		mutations := make([]services.ProjectMutation, 0, len(req.Projects))
		for _, project := range req.Projects {
			mutations = append(mutations, services.ProjectMutation{
				ProjectID:   project.ID,
				Name:        project.Name,
				Items:       project.Items,
				Meta:        project.Meta,
				BaseVersion: project.BaseVersion,
			})
		}

		updated, err := services.ApplyProjectMutations(db, identity, mutations, "project.bulk_update")
		if err != nil {
			renderServiceError(c, err)
			return
		}

		payloads := make([]models.ProjectPayload, 0, len(updated))
		for _, project := range updated {
			payloads = append(payloads, models.NewProjectPayload(project))
		}
		c.JSON(http.StatusOK, gin.H{"updated": payloads})
	}
}
