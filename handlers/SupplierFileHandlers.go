package handlers

import (
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"backend/models"
	"backend/services"
)

func uploadDir() string {
	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "uploads"
	}
	return dir
}

// UploadSupplierFile stores a file a supplier attaches to the current round.
// The access token is the credential; the file inherits the access row's
// company so internal downloads stay tenant-scoped.
// @Summary Upload a supplier interaction file
// @Tags supplier-files
// @Accept multipart/form-data
// @Produce json
// @Param token path string true "Access token"
// @Param file formData file true "File"
// @Success 200 {object} models.SupplierInteractionFile
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/supplier_access/{token}/upload [post]
func UploadSupplierFile(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		access, err := services.FetchSupplierAccess(db, c.Param("token"))
		if err != nil {
			renderServiceError(c, err)
			return
		}
		if access.Status == models.AccessStatusApproved {
			c.JSON(http.StatusForbidden, gin.H{"error": "Quote is closed for this action"})
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if file.Size > 25<<20 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File exceeds the 25 MB limit"})
			return
		}

		dir := filepath.Join(uploadDir(), "supplier_files", access.ID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload directory"})
			return
		}
		safeName := filepath.Base(file.Filename)
		storedPath := filepath.Join(dir, uuid.NewString()+"_"+safeName)
		if err := c.SaveUploadedFile(file, storedPath); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file", "details": err.Error()})
			return
		}

		var meta models.SupplierInteractionFile
		err = db.QueryRow(`
			INSERT INTO supplier_interaction_files (company_id, access_id, round, stored_path, original_name, size, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6, 'supplier')
			RETURNING id, created_at`,
			access.CompanyID, access.ID, access.Round, storedPath, safeName, file.Size,
		).Scan(&meta.ID, &meta.CreatedAt)
		if err != nil {
			os.Remove(storedPath)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record file", "details": err.Error()})
			return
		}

		meta.CompanyID = access.CompanyID
		meta.AccessID = access.ID
		meta.Round = access.Round
		meta.OriginalName = safeName
		meta.Size = file.Size
		meta.UploadedBy = "supplier"
		c.JSON(http.StatusOK, meta)
	}
}

// DownloadSupplierFile serves an interaction file to an internal user.
// Access is tenant-scoped: a user of another company gets 403 and no file
// metadata beyond that.
// @Summary Download a supplier interaction file
// @Tags supplier-files
// @Produce application/octet-stream
// @Param id path int true "File ID"
// @Success 200 {file} file
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/supplier_interaction/file/{id} [get]
func DownloadSupplierFile(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		fileID, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file id"})
			return
		}

		var meta models.SupplierInteractionFile
		err = db.QueryRow(`
			SELECT id, company_id, access_id, round, stored_path, original_name, size, uploaded_by, created_at
			FROM supplier_interaction_files WHERE id = $1`, fileID,
		).Scan(&meta.ID, &meta.CompanyID, &meta.AccessID, &meta.Round, &meta.StoredPath,
			&meta.OriginalName, &meta.Size, &meta.UploadedBy, &meta.CreatedAt)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error loading file", "details": err.Error()})
			return
		}

		if err := services.Authorize(identity, services.CapabilityRead, meta.CompanyID); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		// Keep the served path inside the upload root.
		absRoot, err := filepath.Abs(uploadDir())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload directory unavailable"})
			return
		}
		absPath, err := filepath.Abs(meta.StoredPath)
		if err != nil || !strings.HasPrefix(absPath, absRoot+string(os.PathSeparator)) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		if info, err := os.Stat(absPath); err != nil || info.IsDir() {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}

		c.FileAttachment(absPath, meta.OriginalName)
	}
}
