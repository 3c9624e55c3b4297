package handlers

import (
	"database/sql"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/utils"
)

// GetActivityLogsHandler godoc
// @Summary      Get audit log entries
// @Description  Paginated audit trail, scoped to the caller's company
// @Tags         activity-logs
// @Param        page   query  int  false  "Page"
// @Param        limit  query  int  false  "Limit"
// @Success      200    {object}  object
// @Failure      401    {object}  models.ErrorResponse
// @Router       /api/logs [get]
func GetActivityLogsHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			page = 1
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if err != nil || limit < 1 {
			limit = 10
		}
		offset := (page - 1) * limit

		scope := ``
		args := []interface{}{}
		if !identity.IsSuperadmin() {
			scope = ` WHERE company_id = $1`
			args = append(args, identity.CompanyID)
		}

		ctx, cancel := utils.GetFastQueryContext(c.Request.Context())
		defer cancel()

		var totalRecords int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+scope, args...).Scan(&totalRecords); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error counting logs"})
			return
		}

		totalPages := int(math.Ceil(float64(totalRecords) / float64(limit)))

		query := `
			SELECT id, action, entity_type, entity_id, actor_id, actor_email, company_id, metadata, created_at
			FROM audit_logs` + scope + `
			ORDER BY created_at DESC
			LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		args = append(args, limit, offset)

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying logs"})
			return
		}
		defer rows.Close()

		logs := []models.AuditLogEntry{}
		for rows.Next() {
			var entry models.AuditLogEntry
			if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID,
				&entry.ActorID, &entry.ActorEmail, &entry.CompanyID, &entry.Metadata, &entry.CreatedAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error scanning logs"})
				return
			}
			logs = append(logs, entry)
		}

		c.JSON(http.StatusOK, gin.H{
			"logs": logs,
			"pagination": gin.H{
				"current_page":  page,
				"total_pages":   totalPages,
				"total_records": totalRecords,
				"has_next":      page < totalPages,
				"has_prev":      page > 1,
			},
		})
	}
}
