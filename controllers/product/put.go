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

// UpdateProductRequest only changes the fields that are present.
type UpdateProductRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Stock         *int             `json:"stock"`
	Active        *bool            `json:"active"`
	CategoryID    *uint            `json:"category_id"`
	ClearCategory bool             `json:"clear_category"`
}

func (r UpdateProductRequest) columns(current models.Product) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, apperr.Validation("Name must not be empty")
		}
		updates["name"] = name
	}
	if r.Description != nil {
		updates["description"] = *r.Description
	}
	price, stock := current.Price, current.Stock
	if r.Price != nil {
		price = *r.Price
		updates["price"] = price
	}
	if r.Stock != nil {
		stock = *r.Stock
		updates["stock"] = stock
	}
	if err := validateAmounts(price, stock); err != nil {
		return nil, err
	}
	if r.Active != nil {
		updates["active"] = *r.Active
	}
	switch {
	case r.ClearCategory:
		updates["category_id"] = nil
	case r.CategoryID != nil:
		updates["category_id"] = *r.CategoryID
	}
	return updates, nil
}

// UpdateProduct handles PUT /api/products/:id
func UpdateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
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
		var req UpdateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid request payload"))
			return
		}

		var product *models.Product
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findProduct(tx, id)
			if err != nil {
				return err
			}
			updates, err := req.columns(*before)
			if err != nil {
				return err
			}
			if !req.ClearCategory {
				if err := checkCategory(tx, req.CategoryID); err != nil {
					return err
				}
			}
			if len(updates) > 0 {
				if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
					return fmt.Errorf("update product: %w", err)
				}
			}
			if product, err = findProduct(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor:      p.Actor(),
				Action:     "product.update",
				EntityType: "product",
				EntityID:   id,
				Before:     before,
				After:      product,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}
