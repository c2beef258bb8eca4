package productcontroller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type"` // PHYSICAL (default), DIGITAL or COURSE
}

func (r CategoryRequest) normalize() (models.Category, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return models.Category{}, apperr.Validation("Name is required")
	}
	t, ok := models.ParseCategoryType(r.Type)
	if !ok {
		return models.Category{}, apperr.Validation("Invalid category type %q", r.Type)
	}
	return models.Category{Name: name, Description: strings.TrimSpace(r.Description), Type: t}, nil
}

// nameTaken reports whether another category already uses name, ignoring case.
func nameTaken(db *gorm.DB, name string, exceptID uint) (bool, error) {
	var n int64
	err := db.Model(&models.Category{}).
		Where("LOWER(name) = LOWER(?) AND id <> ?", name, exceptID).
		Count(&n).Error
	return n > 0, err
}

func findCategory(db *gorm.DB, id uint) (*models.Category, error) {
	var category models.Category
	if err := db.Preload("ShippingRate").First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// CategoryWithCount is a category plus the number of live products in it.
type CategoryWithCount struct {
	models.Category
	ProductCount int64 `json:"product_count"`
}

// ListCategories returns all categories with their shipping rate and product counts.
func ListCategories(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var categories []models.Category
		if err := db.Preload("ShippingRate").Order("name").Find(&categories).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		type countRow struct {
			CategoryID uint
			N          int64
		}
		var rows []countRow
		if err := db.Model(&models.Product{}).
			Select("category_id, COUNT(*) AS n").
			Where("category_id IS NOT NULL").
			Group("category_id").
			Scan(&rows).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		counts := make(map[uint]int64, len(rows))
		for _, r := range rows {
			counts[r.CategoryID] = r.N
		}

		out := make([]CategoryWithCount, 0, len(categories))
		for _, cat := range categories {
			out = append(out, CategoryWithCount{Category: cat, ProductCount: counts[cat.ID]})
		}
		c.JSON(http.StatusOK, out)
	}
}

func GetCategory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		category, err := findCategory(db, id)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func CreateCategory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		category, err := req.normalize()
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			taken, err := nameTaken(tx, category.Name, 0)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("Category name already exists")
			}
			if err := tx.Create(&category).Error; err != nil {
				return fmt.Errorf("create category: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "category.create",
				EntityType: "category", EntityID: category.ID, After: category,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func UpdateCategory(db *gorm.DB) gin.HandlerFunc {
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
		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		next, err := req.normalize()
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var category *models.Category
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findCategory(tx, id)
			if err != nil {
				return err
			}
			taken, err := nameTaken(tx, next.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return apperr.Conflict("Category name already exists")
			}
			if err := tx.Model(&models.Category{}).Where("id = ?", id).Updates(map[string]interface{}{
				"name":        next.Name,
				"description": next.Description,
				"type":        next.Type,
			}).Error; err != nil {
				return fmt.Errorf("update category: %w", err)
			}
			if category, err = findCategory(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "category.update",
				EntityType: "category", EntityID: id, Before: before, After: category,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

// DeleteCategory refuses while live products reference the category. Its
// shipping rate goes with it and soft-deleted products are detached.
func DeleteCategory(db *gorm.DB) gin.HandlerFunc {
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

		err = db.Transaction(func(tx *gorm.DB) error {
			category, err := findCategory(tx, id)
			if err != nil {
				return err
			}

			var inUse int64
			if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
				return err
			}
			if inUse > 0 {
				return apperr.Conflict(fmt.Sprintf("Category is used by %d products", inUse))
			}

			if err := tx.Unscoped().Model(&models.Product{}).Where("category_id = ?", id).
				Update("category_id", nil).Error; err != nil {
				return fmt.Errorf("detach deleted products: %w", err)
			}
			if err := tx.Where("category_id = ?", id).Delete(&models.ShippingRate{}).Error; err != nil {
				return fmt.Errorf("delete category shipping rate: %w", err)
			}
			if err := tx.Delete(&models.Category{}, id).Error; err != nil {
				return fmt.Errorf("delete category: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "category.delete",
				EntityType: "category", EntityID: id, Before: category,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
	}
}
