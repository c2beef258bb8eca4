package orderControllers

import (
	"github.com/gin-gonic/gin"

	"github.com/junaidrashid-git/crm-admin-api/events"
)

// OrderWebSocketHandler streams order events to a signed-in staff dashboard.
func OrderWebSocketHandler(hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request)
	}
}
