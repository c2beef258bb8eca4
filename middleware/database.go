package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/database"
)

const pingTimeout = 2 * time.Second

// RequireDatabase answers 503 before any handler touches an unreachable database.
func RequireDatabase(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			apperr.Respond(c, apperr.Unavailable("Database unavailable", err))
			return
		}
		c.Next()
	}
}
