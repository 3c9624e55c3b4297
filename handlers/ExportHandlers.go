package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"backend/models"
	"backend/services"
)

var exportHeader = []string{"Project", "Item ID", "Drawing No", "Description", "Manufacturer", "MPN", "Supplier", "Qty", "Price", "Lead Time", "Status"}

// ExportProjects builds an XLSX workbook of the selected projects. The id
// list is filtered through TenantScope first; any out-of-scope id fails the
// whole request with the precise denied list, and no data for denied ids is
// read at all.
// @Summary Export selected projects
// @Tags export
// @Accept json
// @Produce application/octet-stream
// @Param request body models.ExportRequest true "Project ids"
// @Success 200 {file} file "XLSX workbook"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ExportDeniedResponse
// @Router /api/export [post]
func ExportProjects(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req models.ExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if len(req.ProjectIDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_ids is required"})
			return
		}

		allowed, denied, err := services.FilterProjectIDs(db, identity, req.ProjectIDs, services.CapabilityRead)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error checking project access", "details": err.Error()})
			return
		}
		if len(denied) > 0 {
			c.JSON(http.StatusForbidden, models.ExportDeniedResponse{
				Error:            "Access denied for some projects",
				DeniedProjectIDs: denied,
			})
			return
		}

		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		headerStyle, _ := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDE6F0"}, Pattern: 1},
		})
		for col, title := range exportHeader {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet, cell, title)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}

		row := 2
		for _, projectID := range allowed {
			project, err := services.FetchProject(db, projectID)
			if err != nil {
				renderServiceError(c, err)
				return
			}
			for _, raw := range project.Data.Items() {
				item, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				values := []interface{}{
					project.Name,
					item["id"],
					item["item_drawing_no"],
					item["description"],
					item["manufacturer"],
					item["mpn"],
					item["supplier"],
					item["qty_1"],
					item["price_1"],
					item["lead_time_1"],
					item["status"],
				}
				for col, value := range values {
					cell, _ := excelize.CoordinatesToCellName(col+1, row)
					f.SetCellValue(sheet, cell, value)
				}
				row++
			}
		}

		filename := fmt.Sprintf("rfq_export_%s.xlsx", time.Now().Format("20060102_150405"))
		c.Header("Content-Description", "File Transfer")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write export", "details": err.Error()})
			return
		}
	}
}
