package routes

import (
	"github.com/gin-gonic/gin"

	productcontroller "github.com/junaidrashid-git/crm-admin-api/controllers/product"
	shippingcontroller "github.com/junaidrashid-git/crm-admin-api/controllers/shipping"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

// SetupCatalogRoutes registers products, categories and shipping rates under /api.
func SetupCatalogRoutes(api *gin.RouterGroup, d Deps) {
	db := d.DB
	can := middleware.Require

	// ─────────── Product Management ───────────
	products := api.Group("/products")
	{
		products.GET("", can(permissions.CatalogRead), productcontroller.ListProducts(db))
		products.GET("/export-excel", can(permissions.CatalogRead), productcontroller.ExportProductsToExcel(db))
		products.POST("/import-excel", can(permissions.CatalogWrite), productcontroller.ImportProductsFromExcel(db))
		products.GET("/:id", can(permissions.CatalogRead), productcontroller.GetProduct(db))
		products.POST("", can(permissions.CatalogWrite), productcontroller.CreateProduct(db))
		products.PUT("/:id", can(permissions.CatalogWrite), productcontroller.UpdateProduct(db))
		products.POST("/:id/image", can(permissions.CatalogWrite), productcontroller.UploadProductImage(db, d.Config.UploadDir))
		products.DELETE("/:id", can(permissions.CatalogDelete), productcontroller.DeleteProduct(db))
	}

	// ─────────── Category Management ───────────
	categories := api.Group("/categories")
	{
		categories.GET("", can(permissions.CatalogRead), productcontroller.ListCategories(db))
		categories.GET("/:id", can(permissions.CatalogRead), productcontroller.GetCategory(db))
		categories.POST("", can(permissions.CatalogWrite), productcontroller.CreateCategory(db))
		categories.PUT("/:id", can(permissions.CatalogWrite), productcontroller.UpdateCategory(db))
		categories.DELETE("/:id", can(permissions.CatalogDelete), productcontroller.DeleteCategory(db))
	}

	// ─────────── Shipping Rates ───────────
	rates := api.Group("/shipping-rates")
	{
		rates.GET("", can(permissions.ShippingRead), shippingcontroller.ListRates(db))
		rates.POST("", can(permissions.ShippingWrite), shippingcontroller.CreateRate(db))
		rates.POST("/quote", can(permissions.ShippingQuote), shippingcontroller.Quote(db))
		rates.PUT("/:id", can(permissions.ShippingWrite), shippingcontroller.UpdateRate(db))
		rates.DELETE("/:id", can(permissions.ShippingWrite), shippingcontroller.DeleteRate(db))
	}
}
