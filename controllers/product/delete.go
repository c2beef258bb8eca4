package productcontroller

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

// DeleteProduct soft-deletes a product. Existing order items keep pointing at
// it so cancellations can still restore its stock.
func DeleteProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1️⃣ Parse caller and product ID
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := parseID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			// 2️⃣ Fetch product
			product, err := findProduct(tx, id)
			if err != nil {
				return err
			}
			// 3️⃣ Delete the product itself
			if err := tx.Delete(&models.Product{}, id).Error; err != nil {
				return fmt.Errorf("delete product: %w", err)
			}
			// 4️⃣ Audit
			return audit.Record(tx, audit.Entry{
				Actor:      p.Actor(),
				Action:     "product.delete",
				EntityType: "product",
				EntityID:   id,
				Before:     product,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
	}
}
