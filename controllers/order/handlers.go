package orderControllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/events"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func orderID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid order ID")
	}
	return uint(id), nil
}

func paging(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

// PlaceOrderHandler handles POST /api/orders (customer)
func PlaceOrderHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Items and payment_method are required"})
			return
		}
		order, err := PlaceOrder(db, p, req)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		pub.Broadcast(events.Event{Type: events.OrderPlaced, Order: order})
		c.JSON(http.StatusCreated, order)
	}
}

// ListOrdersHandler: staff see every order, customers only their own.
func ListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var customerID uint64
		if !p.IsCustomer() {
			if v := c.Query("customer_id"); v != "" {
				if customerID, err = strconv.ParseUint(v, 10, 64); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer_id"})
					return
				}
			}
		} else {
			customerID = uint64(p.ID)
		}
		var status models.OrderStatus
		if v := c.Query("status"); v != "" {
			var ok bool
			if status, ok = models.ParseOrderStatus(v); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
				return
			}
		}

		filtered := func() *gorm.DB {
			q := db.Model(&models.Order{})
			if customerID != 0 {
				q = q.Where("customer_id = ?", customerID)
			}
			if status != "" {
				q = q.Where("status = ?", status)
			}
			return q
		}

		var total int64
		if err := filtered().Count(&total).Error; err != nil {
			apperr.Respond(c, err)
			return
		}

		page, size := paging(c)
		query := filtered().Preload("Items")
		if !p.IsCustomer() {
			query = query.Preload("Customer")
		}
		var orders []models.Order
		if err := query.
			Order("created_at DESC, id DESC").
			Offset((page - 1) * size).
			Limit(size).
			Find(&orders).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total, "page": page, "limit": size})
	}
}

// GetOrderHandler returns one order with items and products.
func GetOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := orderID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var order models.Order
		if err := db.
			Preload("Customer").
			Preload("Items").
			Preload("Items.Product", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
			First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperr.Respond(c, ErrOrderNotFound)
				return
			}
			apperr.Respond(c, err)
			return
		}
		if p.IsCustomer() && order.CustomerID != p.ID {
			apperr.Respond(c, apperr.Forbidden("You can only view your own orders"))
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// CancelOrderHandler handles POST /api/orders/:id/cancel for customers and staff.
func CancelOrderHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := orderID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		// The body is optional
		var req CancelOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
			return
		}

		order, err := CancelOrder(db, id, p, req.Reason)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		pub.Broadcast(events.Event{Type: events.OrderCancelled, Order: order})
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully", "order": order})
	}
}

// UpdateOrderStatusHandler handles PUT /api/orders/:id/status
func UpdateOrderStatusHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := orderID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
			return
		}

		order, err := UpdateOrderStatus(db, id, req.Status, p, req.Reason)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		eventType := events.OrderStatusChanged
		if order.Status == models.OrderStatusCancelled {
			eventType = events.OrderCancelled
		}
		pub.Broadcast(events.Event{Type: eventType, Order: order})
		c.JSON(http.StatusOK, gin.H{"message": "Order status updated successfully", "order": order})
	}
}
