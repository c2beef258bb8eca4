package customerControllers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/export"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

// ExportCustomersCSV handles GET /api/customers/export. It takes the same
// search and tag_id filters as the listing.
func ExportCustomersCSV(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := filterFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var customers []models.Customer
		if err := filter.apply(db).Preload("Tags").Order("id").Find(&customers).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		var buf bytes.Buffer
		if err := export.Customers(&buf, customers); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to write CSV", err))
			return
		}
		filename := "customers-" + time.Now().UTC().Format("20060102") + ".csv"
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}
