package productcontroller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/export"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

// ImportResult summarises an Excel import.
type ImportResult struct {
	Created int `json:"created_count"`
	Updated int `json:"updated_count"`
	Skipped int `json:"skipped_count"`
}

// ImportProducts upserts parsed rows in one transaction. Rows whose ID is
// unknown are created; rows naming a missing category are skipped.
func ImportProducts(db *gorm.DB, p auth.Principal, rows []export.ImportedProduct) (ImportResult, error) {
	var res ImportResult
	err := db.Transaction(func(tx *gorm.DB) error {
		categories := map[uint]bool{}
		for _, row := range rows {
			if row.CategoryID != nil {
				if _, seen := categories[*row.CategoryID]; !seen {
					categories[*row.CategoryID] = checkCategory(tx, row.CategoryID) == nil
				}
				if !categories[*row.CategoryID] {
					res.Skipped++
					continue
				}
			}

			if row.ID != 0 {
				var existing models.Product
				err := tx.First(&existing, row.ID).Error
				switch {
				case err == nil:
					if err := tx.Model(&models.Product{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
						"name":        row.Name,
						"description": row.Desc,
						"price":       row.Price,
						"stock":       row.Stock,
						"active":      row.Active,
						"category_id": row.CategoryID,
						"image":       row.Image,
					}).Error; err != nil {
						return fmt.Errorf("update row %d: %w", row.Row, err)
					}
					res.Updated++
					continue
				case !errors.Is(err, gorm.ErrRecordNotFound):
					return fmt.Errorf("lookup row %d: %w", row.Row, err)
				}
			}

			// Insert new product
			product := models.Product{
				Name:        row.Name,
				Description: row.Desc,
				Price:       row.Price,
				Stock:       row.Stock,
				Active:      row.Active,
				CategoryID:  row.CategoryID,
				Image:       row.Image,
			}
			if err := tx.Create(&product).Error; err != nil {
				return fmt.Errorf("create row %d: %w", row.Row, err)
			}
			res.Created++
		}

		return audit.Record(tx, audit.Entry{
			Actor:      p.Actor(),
			Action:     "product.import",
			EntityType: "product",
			After:      res,
		})
	})
	return res, err
}

// ImportProductsFromExcel handles POST /api/products/import (multipart field "file").
func ImportProductsFromExcel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		excelFileHeader, err := c.FormFile("file")
		if err != nil {
			apperr.Respond(c, apperr.Validation("Excel file is required"))
			return
		}
		file, err := excelFileHeader.Open()
		if err != nil {
			apperr.Respond(c, apperr.Internal("Failed to open Excel file", err))
			return
		}
		defer file.Close()

		rows, skipped, err := export.ParseProducts(file, excelFileHeader.Size)
		if err != nil {
			if errors.Is(err, export.ErrEmptySheet) {
				apperr.Respond(c, apperr.Validation("Excel file is empty or missing header row"))
				return
			}
			apperr.Respond(c, apperr.Validation("Failed to parse Excel file"))
			return
		}

		res, err := ImportProducts(db, p, rows)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		res.Skipped += skipped
		c.JSON(http.StatusOK, gin.H{
			"message":       "Import completed",
			"created_count": res.Created,
			"updated_count": res.Updated,
			"skipped_count": res.Skipped,
		})
	}
}
