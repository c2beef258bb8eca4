package shippingcontroller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	shippingcontroller "github.com/junaidrashid-git/crm-admin-api/controllers/shipping"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
	"github.com/junaidrashid-git/crm-admin-api/shipping"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func router(db *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, auth.Principal{Kind: auth.KindAdmin, ID: 1, Role: permissions.RoleAdmin})
		c.Next()
	})
	r.GET("/rates", shippingcontroller.ListRates(db))
	r.POST("/rates", shippingcontroller.CreateRate(db))
	r.PUT("/rates/:id", shippingcontroller.UpdateRate(db))
	r.DELETE("/rates/:id", shippingcontroller.DeleteRate(db))
	r.POST("/quote", shippingcontroller.Quote(db))
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	books := models.Category{Name: "Books", Type: models.CategoryPhysical}
	require.NoError(t, db.Create(&books).Error)
	r := router(db)

	w := do(r, http.MethodPost, "/rates", gin.H{"fee": 20, "free_shipping_threshold": 200})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var def models.ShippingRate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &def))
	assert.True(t, def.IsDefault())

	w = do(r, http.MethodPost, "/rates", gin.H{"fee": 25})
	assert.Equal(t, http.StatusConflict, w.Code, "only one default rate")

	w = do(r, http.MethodPost, "/rates", gin.H{"category_id": books.ID, "fee": "5.50"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bookRate models.ShippingRate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bookRate))
	assert.False(t, bookRate.FreeShippingThreshold.Valid)

	w = do(r, http.MethodPost, "/rates", gin.H{"category_id": books.ID, "fee": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(r, http.MethodPost, "/rates", gin.H{"category_id": 999, "fee": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/rates", gin.H{"fee": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/rates", nil)
	var rates []models.ShippingRate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rates))
	require.Len(t, rates, 2)
	assert.True(t, rates[0].IsDefault(), "default rate is listed first")

	w = do(r, http.MethodPut, "/rates/"+strconv.Itoa(int(def.ID)), gin.H{"clear_threshold": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.ShippingRate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.False(t, updated.FreeShippingThreshold.Valid)
	assert.True(t, decimal.NewFromInt(20).Equal(updated.Fee))

	w = do(r, http.MethodPut, "/rates/"+strconv.Itoa(int(bookRate.ID)), gin.H{"fee": 3, "free_shipping_threshold": 50})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, decimal.NewFromInt(50).Equal(updated.FreeShippingThreshold.Decimal))

	w = do(r, http.MethodDelete, "/rates/"+strconv.Itoa(int(bookRate.ID)), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodDelete, "/rates/"+strconv.Itoa(int(bookRate.ID)), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuoteHandler(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.Create(&models.ShippingRate{
		Fee:                   decimal.NewFromInt(15),
		FreeShippingThreshold: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	}).Error)
	product := models.Product{Name: "Mug", Price: decimal.NewFromInt(30), Stock: 9, Active: true}
	require.NoError(t, db.Create(&product).Error)
	r := router(db)

	w := do(r, http.MethodPost, "/quote", gin.H{"items": []gin.H{{"product_id": product.ID, "quantity": 2}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var q shipping.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.True(t, decimal.NewFromInt(15).Equal(q.ShippingFee))
	assert.True(t, decimal.NewFromInt(75).Equal(q.TotalAmount))
	assert.False(t, q.FreeShippingApplied)

	w = do(r, http.MethodPost, "/quote", gin.H{"items": []gin.H{{"product_id": product.ID, "quantity": 4}}})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.True(t, q.FreeShippingApplied)

	w = do(r, http.MethodPost, "/quote", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
