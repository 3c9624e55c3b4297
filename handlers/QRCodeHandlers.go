package handlers

import (
	"bytes"
	"database/sql"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"backend/repository"
	"backend/services"
)

// addLabel draws text onto the image below the QR code.
func addLabel(img *image.RGBA, x, y int, label string, bold bool) {
	col := color.RGBA{30, 30, 30, 255}
	face := inconsolata.Regular8x16
	if bold {
		face = inconsolata.Bold8x16
	}

	point := fixed.Point26_6{
		X: fixed.Int26_6(x * 64),
		Y: fixed.Int26_6(y * 64),
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  point,
	}
	d.DrawString(label)
}

// SupplierAccessQRCode godoc
// @Summary      QR code for a supplier portal link
// @Description  Renders the portal URL of an access token as a labelled QR JPEG
// @Tags         qr
// @Param        token  path  string  true  "Access token"
// @Success      200  {file}  file  "JPEG image"
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/supplier_access/{token}/qr [get]
func SupplierAccessQRCode(db *sql.DB) gin.HandlerFunc {
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

		portalURL := repository.BuildSupplierPortalURL(portalBaseURL(), access.ID)
		qrImg, err := qrcode.New(portalURL, qrcode.Medium)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build QR code"})
			return
		}

		const qrSize = 256
		const labelHeight = 48
		canvas := image.NewRGBA(image.Rect(0, 0, qrSize, qrSize+labelHeight))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(canvas, image.Rect(0, 0, qrSize, qrSize), qrImg.Image(qrSize), image.Point{}, draw.Over)

		addLabel(canvas, 8, qrSize+18, access.SupplierName, true)
		addLabel(canvas, 8, qrSize+38, access.ProjectID, false)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 90}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode image"})
			return
		}

		c.Header("Content-Type", "image/jpeg")
		c.Header("Content-Disposition", "inline; filename=supplier_access_qr.jpg")
		c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
	}
}
