package customerControllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

type SetTagsInput struct {
	TagIDs []uint `json:"tag_ids"`
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func checkTags(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Tag{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(ids) {
		return apperr.Validation("Unknown tag in tag_ids")
	}
	return nil
}

// replaceTags makes ids the customer's complete tag set.
func replaceTags(tx *gorm.DB, customerID uint, ids []uint) error {
	ids = uniqueIDs(ids)
	if err := checkTags(tx, ids); err != nil {
		return err
	}
	if err := tx.Where("customer_id = ?", customerID).Delete(&models.CustomerTag{}).Error; err != nil {
		return fmt.Errorf("clear customer tags: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]models.CustomerTag, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.CustomerTag{CustomerID: customerID, TagID: id, CreatedAt: now})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert customer tags: %w", err)
	}
	return nil
}

func tagParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("tagId"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid tag ID")
	}
	return uint(id), nil
}

// SetCustomerTags handles PUT /api/customers/:id/tags
func SetCustomerTags(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := customerID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input SetTagsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("tag_ids is required"))
			return
		}

		var customer *models.Customer
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findCustomer(tx, id)
			if err != nil {
				return err
			}
			if err := replaceTags(tx, id, input.TagIDs); err != nil {
				return err
			}
			if customer, err = findCustomer(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "customer.tags",
				EntityType: "customer", EntityID: id, Before: before.Tags, After: customer.Tags,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

// AddCustomerTag handles POST /api/customers/:id/tags/:tagId. Adding a tag the
// customer already has is a no-op.
func AddCustomerTag(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := customerID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		tagID, err := tagParam(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var customer *models.Customer
		err = db.Transaction(func(tx *gorm.DB) error {
			if _, err := findCustomer(tx, id); err != nil {
				return err
			}
			if err := checkTags(tx, []uint{tagID}); err != nil {
				return apperr.NotFound("Tag not found")
			}
			row := models.CustomerTag{CustomerID: id, TagID: tagID, CreatedAt: time.Now()}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("add customer tag: %w", res.Error)
			}
			var err error
			if customer, err = findCustomer(tx, id); err != nil {
				return err
			}
			if res.RowsAffected == 0 {
				return nil
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "customer.tag_add",
				EntityType: "customer", EntityID: id, After: gin.H{"tag_id": tagID},
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

// RemoveCustomerTag handles DELETE /api/customers/:id/tags/:tagId
func RemoveCustomerTag(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := customerID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		tagID, err := tagParam(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var customer *models.Customer
		err = db.Transaction(func(tx *gorm.DB) error {
			if _, err := findCustomer(tx, id); err != nil {
				return err
			}
			res := tx.Where("customer_id = ? AND tag_id = ?", id, tagID).Delete(&models.CustomerTag{})
			if res.Error != nil {
				return fmt.Errorf("remove customer tag: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.NotFound("Customer does not have this tag")
			}
			var err error
			if customer, err = findCustomer(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "customer.tag_remove",
				EntityType: "customer", EntityID: id, Before: gin.H{"tag_id": tagID},
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}
