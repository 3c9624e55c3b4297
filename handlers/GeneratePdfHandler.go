package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"

	"backend/services"
)

// GenerateRFQPdf renders an RFQ summary sheet for a project: header, item
// table and quoted prices.
// @Summary Generate RFQ summary PDF
// @Tags pdf
// @Produce application/pdf
// @Param id path string true "Project ID"
// @Success 200 {file} file "PDF document"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/rfq_pdf [get]
func GenerateRFQPdf(db *sql.DB) gin.HandlerFunc {
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

		pdf := gofpdf.New("L", "mm", "A4", "")
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 16)
		pdf.Cell(0, 10, "RFQ Summary: "+project.Name)
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 9)
		pdf.Cell(0, 8, fmt.Sprintf("Project %s, generated %s", project.ID, time.Now().Format("2006-01-02 15:04")))
		pdf.Ln(12)

		headers := []string{"Item ID", "Drawing No", "Description", "Supplier", "Qty", "Price", "Lead Time", "Status"}
		widths := []float64{28, 30, 75, 40, 20, 25, 25, 25}

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(221, 230, 240)
		for i, header := range headers {
			pdf.CellFormat(widths[i], 8, header, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, raw := range project.Data.Items() {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			values := []interface{}{
				item["id"], item["item_drawing_no"], item["description"], item["supplier"],
				item["qty_1"], item["price_1"], item["lead_time_1"], item["status"],
			}
			for i, value := range values {
				text := ""
				if value != nil {
					text = fmt.Sprint(value)
				}
				pdf.CellFormat(widths[i], 7, text, "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}

		c.Header("Content-Type", "application/pdf")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=rfq_%s.pdf", project.ID))
		if err := pdf.Output(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render PDF", "details": err.Error()})
			return
		}
	}
}
