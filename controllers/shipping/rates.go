package shippingcontroller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/shipping"
)

var ErrRateNotFound = apperr.NotFound("Shipping rate not found")

// -------- Request Structs --------

// CreateRateRequest without a category_id creates the default rate.
type CreateRateRequest struct {
	CategoryID            *uint               `json:"category_id"`
	Fee                   decimal.Decimal     `json:"fee"`
	FreeShippingThreshold decimal.NullDecimal `json:"free_shipping_threshold"`
}

type UpdateRateRequest struct {
	Fee                   *decimal.Decimal    `json:"fee"`
	FreeShippingThreshold decimal.NullDecimal `json:"free_shipping_threshold"`
	ClearThreshold        bool                `json:"clear_threshold"`
}

type QuoteRequest struct {
	Items []shipping.Item `json:"items" binding:"required"`
}

// -------- Helpers --------

func rateID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid shipping rate ID")
	}
	return uint(id), nil
}

func validateMoney(fee decimal.Decimal, threshold decimal.NullDecimal) error {
	if fee.IsNegative() {
		return apperr.Validation("Fee must not be negative")
	}
	if threshold.Valid && threshold.Decimal.IsNegative() {
		return apperr.Validation("Free shipping threshold must not be negative")
	}
	return nil
}

// ensureSlotFree enforces one default rate and one rate per category.
func ensureSlotFree(tx *gorm.DB, categoryID *uint) error {
	q := tx.Model(&models.ShippingRate{})
	if categoryID == nil {
		q = q.Where("category_id IS NULL")
	} else {
		var n int64
		if err := tx.Model(&models.Category{}).Where("id = ?", *categoryID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.Validation("Category %d does not exist", *categoryID)
		}
		q = q.Where("category_id = ?", *categoryID)
	}

	var existing int64
	if err := q.Count(&existing).Error; err != nil {
		return err
	}
	if existing == 0 {
		return nil
	}
	if categoryID == nil {
		return apperr.Conflict("A default shipping rate already exists")
	}
	return apperr.Conflict("This category already has a shipping rate")
}

func findRate(db *gorm.DB, id uint) (*models.ShippingRate, error) {
	var rate models.ShippingRate
	if err := db.First(&rate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRateNotFound
		}
		return nil, err
	}
	return &rate, nil
}

// -------- Handlers --------

// ListRates returns the default rate first, then category rates by category.
func ListRates(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rates []models.ShippingRate
		if err := db.Order("category_id IS NOT NULL, category_id").Find(&rates).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, rates)
	}
}

func CreateRate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var req CreateRateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid request payload"))
			return
		}
		if err := validateMoney(req.Fee, req.FreeShippingThreshold); err != nil {
			apperr.Respond(c, err)
			return
		}

		rate := models.ShippingRate{
			CategoryID:            req.CategoryID,
			Fee:                   req.Fee,
			FreeShippingThreshold: req.FreeShippingThreshold,
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := ensureSlotFree(tx, req.CategoryID); err != nil {
				return err
			}
			if err := tx.Create(&rate).Error; err != nil {
				return fmt.Errorf("create shipping rate: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "shipping_rate.create",
				EntityType: "shipping_rate", EntityID: rate.ID, After: rate,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, rate)
	}
}

// UpdateRate changes the fee and threshold. The category of a rate is fixed.
func UpdateRate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := rateID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var req UpdateRateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid request payload"))
			return
		}

		var rate *models.ShippingRate
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findRate(tx, id)
			if err != nil {
				return err
			}
			next := *before
			if req.Fee != nil {
				next.Fee = *req.Fee
			}
			switch {
			case req.ClearThreshold:
				next.FreeShippingThreshold = decimal.NullDecimal{}
			case req.FreeShippingThreshold.Valid:
				next.FreeShippingThreshold = req.FreeShippingThreshold
			}
			if err := validateMoney(next.Fee, next.FreeShippingThreshold); err != nil {
				return err
			}
			if err := tx.Model(&models.ShippingRate{}).Where("id = ?", id).Updates(map[string]interface{}{
				"fee":                     next.Fee,
				"free_shipping_threshold": next.FreeShippingThreshold,
			}).Error; err != nil {
				return fmt.Errorf("update shipping rate: %w", err)
			}
			if rate, err = findRate(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "shipping_rate.update",
				EntityType: "shipping_rate", EntityID: id, Before: before, After: rate,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, rate)
	}
}

func DeleteRate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := rateID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			rate, err := findRate(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.ShippingRate{}, id).Error; err != nil {
				return fmt.Errorf("delete shipping rate: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "shipping_rate.delete",
				EntityType: "shipping_rate", EntityID: id, Before: rate,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Shipping rate deleted successfully"})
	}
}

// Quote handles POST /api/shipping-rates/quote and prices a cart without placing it.
func Quote(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("Items are required"))
			return
		}
		quote, err := shipping.QuoteItems(db, req.Items)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}
