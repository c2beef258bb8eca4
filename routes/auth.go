package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
)

// SetupAuthRoutes registers all "/auth/*" endpoints.
func SetupAuthRoutes(r *gin.Engine, d Deps) {
	authGroup := r.Group("/auth", middleware.RequireDatabase(d.DB))
	{
		authGroup.POST("/admin/login", auth.AdminLoginHandler(d.DB, d.Issuer))

		// Google Admin login, only when Firebase is configured
		if d.Verifier != nil {
			authGroup.POST("/admin/google", auth.AdminGoogleLoginHandler(d.DB, d.Issuer, d.Verifier))
		}

		authGroup.POST("/customer/register", auth.CustomerRegisterHandler(d.DB, d.Issuer))
		authGroup.POST("/customer/login", auth.CustomerLoginHandler(d.DB, d.Issuer))
	}
}
