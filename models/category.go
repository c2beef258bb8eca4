package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CategoryType string

const (
	CategoryPhysical CategoryType = "PHYSICAL"
	CategoryDigital  CategoryType = "DIGITAL"
	CategoryCourse   CategoryType = "COURSE"
)

// ParseCategoryType defaults an empty value to PHYSICAL.
func ParseCategoryType(s string) (CategoryType, bool) {
	switch t := CategoryType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return CategoryPhysical, true
	case CategoryPhysical, CategoryDigital, CategoryCourse:
		return t, true
	}
	return "", false
}

// Shippable reports whether products of this type incur shipping fees.
func (t CategoryType) Shippable() bool {
	return t == CategoryPhysical || t == ""
}

type Category struct {
	ID           uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string        `gorm:"uniqueIndex;not null" json:"name"`
	Description  string        `json:"description"`
	Type         CategoryType  `gorm:"type:varchar(20);not null" json:"type"`
	ShippingRate *ShippingRate `gorm:"foreignKey:CategoryID" json:"shipping_rate,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ShippingRate applies to one category, or is the default when CategoryID is nil.
type ShippingRate struct {
	ID                    uint                `gorm:"primaryKey" json:"id"`
	CategoryID            *uint               `gorm:"uniqueIndex" json:"category_id"`
	Fee                   decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"fee"`
	FreeShippingThreshold decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"free_shipping_threshold"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// IsDefault reports whether the rate is the fallback for unconfigured categories.
func (r ShippingRate) IsDefault() bool {
	return r.CategoryID == nil
}
