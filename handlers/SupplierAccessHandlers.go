package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/repository"
	"backend/services"
)

func portalBaseURL() string {
	base := os.Getenv("PORTAL_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return base
}

// GenerateSupplierAccess issues a fresh single-use-per-round token for a
// project/supplier pair and mails the portal link. A previous token for the
// pair is archived as an immutable round.
// @Summary Generate supplier access token
// @Tags supplier-access
// @Accept json
// @Produce json
// @Param request body models.SupplierAccessGenerateRequest true "Access request"
// @Success 200 {object} object
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/supplier_access/generate [post]
func GenerateSupplierAccess(db *sql.DB) gin.HandlerFunc {
	emailService := services.NewEmailService()
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.SupplierAccessGenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		access, err := services.GenerateSupplierAccess(db, identity, req)
		if err != nil {
			renderServiceError(c, err)
			return
		}

		portalURL := repository.BuildSupplierPortalURL(portalBaseURL(), access.ID)

		// The invite mail is best-effort: the token is already persisted and
		// can be copied out of the response.
		if access.SupplierEmail != "" {
			var companyName, projectName string
			_ = db.QueryRow(`SELECT c.name, p.name FROM projects p JOIN companies c ON c.id = p.company_id WHERE p.id = $1`,
				access.ProjectID).Scan(&companyName, &projectName)
			if err := emailService.SendSupplierInvite(access, companyName, projectName, portalURL); err != nil {
				log.Printf("supplier invite mail for %s failed: %v", access.ID, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"access":     access,
			"portal_url": portalURL,
		})
	}
}

// GetSupplierAccess is the supplier-facing fetch of the requested items and
// the current draft. The opaque token is the credential, scoped to exactly
// one project and round.
// @Summary Fetch supplier access by token
// @Tags supplier-access
// @Produce json
// @Param token path string true "Access token"
// @Success 200 {object} models.SupplierAccess
// @Failure 404 {object} models.ErrorResponse
// @Router /api/supplier_access/{token} [get]
func GetSupplierAccess(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		access, err := services.FetchSupplierAccess(db, c.Param("token"))
		if err != nil {
			renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, access)
	}
}

// SaveSupplierDraft persists partial submission data. First draft on a fresh
// token marks it viewed.
// @Summary Save supplier draft
// @Tags supplier-access
// @Accept json
// @Produce json
// @Param token path string true "Access token"
// @Param request body models.SupplierSubmissionRequest true "Draft payload"
// @Success 200 {object} object
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/supplier_access/{token}/save_draft [post]
func SaveSupplierDraft(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SupplierSubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		access, err := services.SaveDraft(db, c.Param("token"), req)
		if err != nil {
			renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": true, "status": access.Status})
	}
}

// SubmitSupplierQuote finalizes a submission. A token that is already
// submitted or approved gets a client error, never a server fault.
// @Summary Submit supplier quote
// @Tags supplier-access
// @Accept json
// @Produce json
// @Param token path string true "Access token"
// @Param request body models.SupplierSubmissionRequest true "Submission payload"
// @Success 200 {object} object
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/supplier_access/{token}/submit [post]
func SubmitSupplierQuote(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SupplierSubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		access, err := services.SubmitQuote(db, c.Param("token"), req)
		if err != nil {
			renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"submitted": true, "submitted_at": access.SubmittedAt})
	}
}

// ApproveSupplierSubmission approves a submitted quote and propagates the
// quoted prices into the owning project's items.
// @Summary Approve supplier submission
// @Tags supplier-access
// @Produce json
// @Param token path string true "Access token"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/supplier_access/{token}/approve [post]
func ApproveSupplierSubmission(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		access, err := services.ApproveSubmission(db, identity, c.Param("token"))
		if err != nil {
			renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": access.Status})
	}
}

// RequestSupplierReopen records a reopen request on an access token in any
// state, including approved. Partial or missing submission data is fine; the
// endpoint reports success in every defined case.
// @Summary Request reopen of a supplier access
// @Tags supplier-access
// @Accept json
// @Produce json
// @Param token path string true "Access token"
// @Param request body models.ReopenRequest false "Reason"
// @Success 200 {object} object
// @Failure 404 {object} models.ErrorResponse
// @Router /api/supplier_access/{token}/request_reopen [post]
func RequestSupplierReopen(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ReopenRequest
		// A missing or malformed body is tolerated: the reason is optional.
		_ = c.ShouldBindJSON(&req)

		access, err := services.RequestReopen(db, c.Param("token"), req.Reason)
		if err != nil {
			renderServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": access.Status, "reopen_requested": true})
	}
}

// ListSupplierAccessRounds returns the archived rounds for an access token
// (newest first), for internal review of quote history.
// @Summary List archived supplier access rounds
// @Tags supplier-access
// @Produce json
// @Param token path string true "Access token"
// @Success 200 {array} models.SupplierAccessRound
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/supplier_access/{token}/rounds [get]
func ListSupplierAccessRounds(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		access, err := services.FetchSupplierAccess(db, c.Param("token"))
		if err != nil {
			renderServiceError(c, err)
			return
		}
		if err := services.Authorize(identity, services.CapabilityRead, access.CompanyID); err != nil {
			renderServiceError(c, err)
			return
		}

		rows, err := db.Query(`
			SELECT id, access_id, company_id, project_id, supplier_name, round, status,
			       requested_items, submission_data, submitted_at, archived_at
			FROM supplier_access_rounds
			WHERE project_id = $1 AND supplier_name = $2
			ORDER BY round DESC`, access.ProjectID, access.SupplierName)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying rounds", "details": err.Error()})
			return
		}
		defer rows.Close()

		rounds := []models.SupplierAccessRound{}
		for rows.Next() {
			var round models.SupplierAccessRound
			var submittedAt sql.NullTime
			if err := rows.Scan(&round.ID, &round.AccessID, &round.CompanyID, &round.ProjectID,
				&round.SupplierName, &round.Round, &round.Status, &round.RequestedItems,
				&round.SubmissionData, &submittedAt, &round.ArchivedAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error scanning rounds"})
				return
			}
			if submittedAt.Valid {
				round.SubmittedAt = &submittedAt.Time
			}
			rounds = append(rounds, round)
		}

		c.JSON(http.StatusOK, rounds)
	}
}
