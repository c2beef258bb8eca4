package productcontroller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      *bool           `json:"active"`
	CategoryID  *uint           `json:"category_id"`
}

func checkCategory(db *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := db.Model(&models.Category{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.Validation("Category %d does not exist", *id)
	}
	return nil
}

func validateAmounts(price decimal.Decimal, stock int) error {
	if price.IsNegative() {
		return apperr.Validation("Price must not be negative")
	}
	if stock < 0 {
		return apperr.Validation("Stock must not be negative")
	}
	return nil
}

// CreateProduct handles POST /api/products. New products are active unless
// the request says otherwise.
func CreateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var req CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		if err := validateAmounts(req.Price, req.Stock); err != nil {
			apperr.Respond(c, err)
			return
		}

		product := models.Product{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			Active:      req.Active == nil || *req.Active,
			CategoryID:  req.CategoryID,
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := checkCategory(tx, req.CategoryID); err != nil {
				return err
			}
			if err := tx.Create(&product).Error; err != nil {
				return fmt.Errorf("create product: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor:      p.Actor(),
				Action:     "product.create",
				EntityType: "product",
				EntityID:   product.ID,
				After:      product,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}
