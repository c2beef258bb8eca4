package productcontroller

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/export"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

// ExportProductsToExcel handles GET /api/products/export
func ExportProductsToExcel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var products []models.Product
		if err := db.Preload("Category").Order("id").Find(&products).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		var buf bytes.Buffer
		if err := export.Products(&buf, products); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to write Excel file", err))
			return
		}

		// Set response headers for download
		c.Header("Content-Disposition", "attachment; filename=products.xlsx")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Expires", "0")
		c.Data(http.StatusOK, export.XLSXContentType, buf.Bytes())
	}
}
