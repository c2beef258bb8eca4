package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/config"
	"github.com/junaidrashid-git/crm-admin-api/database"
	"github.com/junaidrashid-git/crm-admin-api/events"
	"github.com/junaidrashid-git/crm-admin-api/mailer"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
	"github.com/junaidrashid-git/crm-admin-api/payment"
)

// Deps is everything the route groups hand to their controllers.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Issuer   *auth.TokenIssuer
	Verifier auth.IDTokenVerifier // nil disables Google sign-in
	Mailer   mailer.Sender
	Telr     *payment.Client
	Hub      *events.Hub
}

// SetupRoutes is the single entry-point that wires up every route group.
func SetupRoutes(r *gin.Engine, d Deps) {
	r.GET("/healthz", healthz(d.DB))

	// 1️⃣ Public auth routes (no session)
	SetupAuthRoutes(r, d)

	// 2️⃣ Signed-in API: database check, session, then a permission per route
	api := r.Group("/api", middleware.RequireDatabase(d.DB), middleware.RequireSession(d.DB, d.Issuer))
	api.GET("/me", auth.MeHandler())
	SetupAdminRoutes(api, d)
	SetupCRMRoutes(api, d)
	SetupCatalogRoutes(api, d)
	SetupOrderRoutes(r, api, d)

	// 3️⃣ Telr callbacks
	SetupTelrRoutes(r, d)
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	}
}
