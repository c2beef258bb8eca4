package productcontroller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var sortColumns = map[string]bool{
	"created_at": true,
	"name":       true,
	"price":      true,
	"stock":      true,
}

// ListProducts handles GET /api/products with search, category, active and
// price range filters.
func ListProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1️⃣ Filtering & sorting params
		search := strings.TrimSpace(c.Query("search"))
		sortBy := c.DefaultQuery("sort_by", "created_at")
		if !sortColumns[sortBy] {
			sortBy = "created_at"
		}
		sortOrder := strings.ToLower(c.DefaultQuery("order", "desc"))
		if sortOrder != "asc" && sortOrder != "desc" {
			sortOrder = "desc"
		}

		var (
			categoryID         uint64
			active             *bool
			minPrice, maxPrice *decimal.Decimal
			err                error
		)
		if v := c.Query("category_id"); v != "" {
			if categoryID, err = strconv.ParseUint(v, 10, 64); err != nil {
				apperr.Respond(c, apperr.Validation("Invalid category_id"))
				return
			}
		}
		if v := c.Query("active"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				apperr.Respond(c, apperr.Validation("Invalid active"))
				return
			}
			active = &b
		}
		for name, dst := range map[string]**decimal.Decimal{"min_price": &minPrice, "max_price": &maxPrice} {
			if v := c.Query(name); v != "" {
				d, err := decimal.NewFromString(v)
				if err != nil {
					apperr.Respond(c, apperr.Validation("Invalid %s", name))
					return
				}
				*dst = &d
			}
		}

		// 2️⃣ Build base query
		filtered := func() *gorm.DB {
			query := db.Model(&models.Product{})
			if search != "" {
				like := "%" + strings.ToLower(search) + "%"
				query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
			}
			if categoryID != 0 {
				query = query.Where("category_id = ?", categoryID)
			}
			if active != nil {
				query = query.Where("active = ?", *active)
			}
			if minPrice != nil {
				query = query.Where("price >= ?", *minPrice)
			}
			if maxPrice != nil {
				query = query.Where("price <= ?", *maxPrice)
			}
			return query
		}

		var total int64
		if err := filtered().Count(&total).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		// 3️⃣ Paging & sorting
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > maxPageSize {
			limit = defaultPageSize
		}

		var products []models.Product
		if err := filtered().
			Preload("Category").
			Order(fmt.Sprintf("%s %s, id %s", sortBy, sortOrder, sortOrder)).
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&products).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products, "total": total, "page": page, "limit": limit})
	}
}
