package shipping

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

// Item is a requested (product, quantity) pair.
type Item struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// MaxQuantity caps the units of one product in a single cart.
const MaxQuantity = 1_000_000

// ValidateItems rejects empty product ids, quantities below one and any product
// whose units across repeated lines exceed MaxQuantity.
func ValidateItems(items []Item) error {
	totals := make(map[uint]int, len(items))
	for _, it := range items {
		if it.ProductID == 0 {
			return apperr.Validation("Product id is required")
		}
		if it.Quantity < 1 {
			return apperr.Validation("Quantity for product %d must be at least 1", it.ProductID)
		}
		if it.Quantity > MaxQuantity || totals[it.ProductID] > MaxQuantity-it.Quantity {
			return apperr.Validation("Quantity for product %d must not exceed %d", it.ProductID, MaxQuantity)
		}
		totals[it.ProductID] += it.Quantity
	}
	return nil
}

// LoadRateBook reads every shipping rate row.
func LoadRateBook(db *gorm.DB) (RateBook, error) {
	var rates []models.ShippingRate
	if err := db.Find(&rates).Error; err != nil {
		return RateBook{}, fmt.Errorf("load shipping rates: %w", err)
	}
	book := RateBook{ByCategory: make(map[uint]Rate, len(rates))}
	for _, r := range rates {
		if r.IsDefault() {
			rate := RateFrom(r)
			book.Default = &rate
			continue
		}
		book.ByCategory[*r.CategoryID] = RateFrom(r)
	}
	return book, nil
}

// LineFor prices quantity units of p. p.Category must be loaded when set.
func LineFor(p models.Product, quantity int) Line {
	l := Line{
		ProductID:    p.ID,
		Name:         p.Name,
		Price:        p.Price,
		Quantity:     quantity,
		CategoryID:   p.CategoryID,
		CategoryType: models.CategoryPhysical,
	}
	if p.Category != nil {
		l.CategoryType = p.Category.Type
	}
	return l
}

// QuoteItems resolves items against the catalog and prices them. A product that
// does not exist or is inactive fails the whole quote.
func QuoteItems(db *gorm.DB, items []Item) (Quote, error) {
	if err := ValidateItems(items); err != nil {
		return Quote{}, err
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if len(ids) > 0 {
		if err := db.Preload("Category").Where("id IN ?", ids).Find(&products).Error; err != nil {
			return Quote{}, fmt.Errorf("load products: %w", err)
		}
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.Active {
			return Quote{}, apperr.Validation("Product %d not found", it.ProductID)
		}
		lines = append(lines, LineFor(p, it.Quantity))
	}

	book, err := LoadRateBook(db)
	if err != nil {
		return Quote{}, err
	}
	return Calculate(lines, book), nil
}
