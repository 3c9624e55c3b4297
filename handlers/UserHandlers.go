package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/services"
	"backend/utils"
)

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CompanyID int    `json:"company_id,omitempty"`
}

func validRole(role string) bool {
	switch role {
	case models.RoleSuperadmin, models.RoleAdmin, models.RoleEditor, models.RoleViewer:
		return true
	}
	return false
}

// CreateUser creates a user plus their company profile. Admins create users
// inside their own company; only superadmin can place a user elsewhere or
// grant superadmin.
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param request body object true "User"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/users [post]
func CreateUser(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Email == "" || req.Password == "" || !validRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email, password and a valid role are required"})
			return
		}

		companyID := req.CompanyID
		if companyID == 0 && req.Role != models.RoleSuperadmin {
			companyID = identity.CompanyID
		}
		if req.Role == models.RoleSuperadmin && !identity.IsSuperadmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only superadmin can grant superadmin"})
			return
		}
		if req.Role != models.RoleSuperadmin {
			if err := services.Authorize(identity, services.CapabilityAdmin, companyID); err != nil {
				renderServiceError(c, err)
				return
			}
		}

		hashed, err := utils.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}

		tx, err := db.Begin()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to begin transaction"})
			return
		}
		defer tx.Rollback()

		var user models.User
		now := time.Now().UTC()
		err = tx.QueryRow(`
			INSERT INTO users (email, password, first_name, last_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING id`,
			req.Email, hashed, req.FirstName, req.LastName, now,
		).Scan(&user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user", "details": err.Error()})
			return
		}

		var profileCompany interface{}
		if req.Role == models.RoleSuperadmin {
			profileCompany = nil
		} else {
			profileCompany = companyID
		}
		if _, err := tx.Exec(`
			INSERT INTO user_company_profiles (user_id, company_id, role, is_active)
			VALUES ($1, $2, $3, TRUE)`,
			user.ID, profileCompany, req.Role); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create profile", "details": err.Error()})
			return
		}

		if err := services.AppendAuditTx(tx, "user.create", "user", strconv.Itoa(user.ID), identity, models.JSONMap{
			"email": req.Email,
			"role":  req.Role,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record audit entry"})
			return
		}
		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit"})
			return
		}

		user.Email = req.Email
		user.FirstName = req.FirstName
		user.LastName = req.LastName
		user.CreatedAt = now
		user.UpdatedAt = now
		c.JSON(http.StatusOK, user)
	}
}

// GetAllUsers lists the users of the caller's company (every company for
// superadmin).
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /api/users [get]
func GetAllUsers(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		query := `
			SELECT u.id, u.email, u.first_name, u.last_name, u.suspended, p.role, COALESCE(p.company_id, 0)
			FROM users u
			JOIN user_company_profiles p ON p.user_id = u.id`
		args := []interface{}{}
		if !identity.IsSuperadmin() {
			query += ` WHERE p.company_id = $1`
			args = append(args, identity.CompanyID)
		}
		query += ` ORDER BY u.email`

		rows, err := db.Query(query, args...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error querying users", "details": err.Error()})
			return
		}
		defer rows.Close()

		type userWithRole struct {
			models.User
			Role      string `json:"role"`
			CompanyID int    `json:"company_id"`
		}
		users := []userWithRole{}
		for rows.Next() {
			var u userWithRole
			if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Suspended, &u.Role, &u.CompanyID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error scanning users"})
				return
			}
			users = append(users, u)
		}
		c.JSON(http.StatusOK, users)
	}
}

// SuspendUser flips a user's suspended flag and drops their sessions, which
// immediately blocks every open tab.
// @Summary Suspend or restore a user
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/users/{id}/suspend [put]
func SuspendUser(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		var body struct {
			Suspended bool `json:"suspended"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		var targetCompany sql.NullInt64
		if err := db.QueryRow(`SELECT company_id FROM user_company_profiles WHERE user_id = $1`, userID).Scan(&targetCompany); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err := services.Authorize(identity, services.CapabilityAdmin, int(targetCompany.Int64)); err != nil {
			renderServiceError(c, err)
			return
		}

		tx, err := db.Begin()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to begin transaction"})
			return
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`UPDATE users SET suspended = $1, updated_at = NOW() WHERE id = $2`, body.Suspended, userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user", "details": err.Error()})
			return
		}
		if body.Suspended {
			if _, err := tx.Exec(`DELETE FROM session WHERE user_id = $1`, userID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear sessions"})
				return
			}
		}
		if err := services.AppendAuditTx(tx, "user.suspend", "user", strconv.Itoa(userID), identity, models.JSONMap{
			"suspended": body.Suspended,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record audit entry"})
			return
		}
		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"updated": true, "suspended": body.Suspended})
	}
}
