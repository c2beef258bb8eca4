package routes

import (
	"github.com/gin-gonic/gin"

	orderControllers "github.com/junaidrashid-git/crm-admin-api/controllers/order"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

// SetupOrderRoutes registers the order lifecycle under /api and the dashboard
// websocket feed at /ws/orders.
func SetupOrderRoutes(r *gin.Engine, api *gin.RouterGroup, d Deps) {
	db := d.DB
	can := middleware.Require

	orders := api.Group("/orders")
	{
		// Staff see every order, customers their own
		orders.GET("", can(permissions.OrdersRead, permissions.OrdersReadOwn), orderControllers.ListOrdersHandler(db))
		orders.GET("/:id", can(permissions.OrdersRead, permissions.OrdersReadOwn), orderControllers.GetOrderHandler(db))

		// Create a new order (customer)
		orders.POST("", can(permissions.OrdersPlace), orderControllers.PlaceOrderHandler(db, d.Hub))

		// Cancel, restoring stock
		orders.POST("/:id/cancel", can(permissions.OrdersCancel, permissions.OrdersCancelOwn),
			orderControllers.CancelOrderHandler(db, d.Hub))

		// Update order status (e.g., shipped, completed)
		orders.PUT("/:id/status", can(permissions.OrdersUpdate), orderControllers.UpdateOrderStatusHandler(db, d.Hub))

		// Open a Telr hosted payment page for a card order
		orders.POST("/:id/pay", can(permissions.OrdersPayOwn), orderControllers.StartCardPaymentHandler(db, orderControllers.PaymentOptions{
			Gateway:       d.Telr,
			ReturnBaseURL: d.Config.PublicBaseURL,
		}))
	}

	// websocket endpoint for real-time order updates; browsers pass ?token=
	r.GET("/ws/orders",
		middleware.RequireDatabase(db),
		middleware.RequireSession(db, d.Issuer),
		can(permissions.OrdersRead),
		orderControllers.OrderWebSocketHandler(d.Hub),
	)
}
