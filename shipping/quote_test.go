package shipping_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/shipping"
)

func seedCatalog(t *testing.T, db *gorm.DB) (shoes, books models.Product) {
	t.Helper()
	apparel := models.Category{Name: "Apparel", Type: models.CategoryPhysical}
	reading := models.Category{Name: "Books", Type: models.CategoryPhysical}
	require.NoError(t, db.Create(&apparel).Error)
	require.NoError(t, db.Create(&reading).Error)

	require.NoError(t, db.Create(&models.ShippingRate{
		Fee:                   decimal.NewFromInt(20),
		FreeShippingThreshold: decimal.NewNullDecimal(decimal.NewFromInt(200)),
	}).Error)
	require.NoError(t, db.Create(&models.ShippingRate{
		CategoryID: &reading.ID,
		Fee:        decimal.NewFromInt(5),
	}).Error)

	shoes = models.Product{Name: "Shoes", Price: decimal.NewFromInt(80), Stock: 10, Active: true, CategoryID: &apparel.ID}
	books = models.Product{Name: "Novel", Price: decimal.NewFromInt(15), Stock: 10, Active: true, CategoryID: &reading.ID}
	require.NoError(t, db.Create(&shoes).Error)
	require.NoError(t, db.Create(&books).Error)
	return shoes, books
}

func TestQuoteItems(t *testing.T) {
	db := dbtest.Open(t)
	shoes, books := seedCatalog(t, db)

	q, err := shipping.QuoteItems(db, []shipping.Item{
		{ProductID: shoes.ID, Quantity: 1},
		{ProductID: books.ID, Quantity: 2},
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(q.ShippingFee), q.ShippingFee.String())
	assert.True(t, decimal.NewFromInt(110).Equal(q.SubtotalAmount))
	assert.True(t, decimal.NewFromInt(135).Equal(q.TotalAmount))

	q, err = shipping.QuoteItems(db, []shipping.Item{{ProductID: shoes.ID, Quantity: 3}})
	require.NoError(t, err)
	assert.True(t, q.ShippingFee.IsZero())
	assert.True(t, q.FreeShippingApplied)
}

func TestQuoteItemsRejectsBadInput(t *testing.T) {
	db := dbtest.Open(t)
	shoes, _ := seedCatalog(t, db)

	_, err := shipping.QuoteItems(db, []shipping.Item{{ProductID: 9999, Quantity: 1}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = shipping.QuoteItems(db, []shipping.Item{{ProductID: shoes.ID, Quantity: 0}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = shipping.QuoteItems(db, []shipping.Item{{ProductID: shoes.ID, Quantity: shipping.MaxQuantity + 1}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = shipping.QuoteItems(db, []shipping.Item{
		{ProductID: shoes.ID, Quantity: math.MaxInt},
		{ProductID: shoes.ID, Quantity: 1},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, db.Model(&shoes).Update("active", false).Error)
	_, err = shipping.QuoteItems(db, []shipping.Item{{ProductID: shoes.ID, Quantity: 1}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLoadRateBook(t *testing.T) {
	db := dbtest.Open(t)
	_, books := seedCatalog(t, db)

	book, err := shipping.LoadRateBook(db)
	require.NoError(t, err)
	require.NotNil(t, book.Default)
	assert.True(t, decimal.NewFromInt(20).Equal(book.Default.Fee))
	assert.Contains(t, book.ByCategory, *books.CategoryID)
}

func TestValidateItemsQuantityBounds(t *testing.T) {
	tests := []struct {
		name  string
		items []shipping.Item
		ok    bool
	}{
		{"at limit", []shipping.Item{{ProductID: 1, Quantity: shipping.MaxQuantity}}, true},
		{"repeated lines at limit", []shipping.Item{
			{ProductID: 1, Quantity: shipping.MaxQuantity - 1}, {ProductID: 1, Quantity: 1}}, true},
		{"limit applies per product", []shipping.Item{
			{ProductID: 1, Quantity: shipping.MaxQuantity}, {ProductID: 2, Quantity: shipping.MaxQuantity}}, true},
		{"over limit", []shipping.Item{{ProductID: 1, Quantity: shipping.MaxQuantity + 1}}, false},
		{"repeated lines over limit", []shipping.Item{
			{ProductID: 1, Quantity: shipping.MaxQuantity}, {ProductID: 1, Quantity: 1}}, false},
		{"overflowing sum", []shipping.Item{
			{ProductID: 1, Quantity: math.MaxInt}, {ProductID: 1, Quantity: 1}}, false},
		{"negative", []shipping.Item{{ProductID: 1, Quantity: -1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := shipping.ValidateItems(tt.items)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}
