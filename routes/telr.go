package routes

import (
	"github.com/gin-gonic/gin"

	orderControllers "github.com/junaidrashid-git/crm-admin-api/controllers/order"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
)

func SetupTelrRoutes(r *gin.Engine, d Deps) {
	payment := r.Group("/payment")
	{
		// Webhook endpoint: middleware handles sandbox/prod verification
		payment.POST("/webhook",
			middleware.RequireDatabase(d.DB),
			middleware.TelrWebhookAuth(d.Config.Telr.WebhookSecret, d.Config.Telr.Sandbox()),
			orderControllers.TelrWebhookHandler(d.DB, d.Hub),
		)
	}
}
