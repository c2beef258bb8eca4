package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/auth"
)

// RequireSession validates the bearer token, reloads the account behind it and
// stores the resulting principal on the context.
func RequireSession(db *gorm.DB, issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			apperr.Respond(c, apperr.Unauthenticated("Authorization header is missing"))
			return
		}

		p, err := issuer.Parse(tokenString)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		// Role or approval may have changed since the token was issued
		p, err = auth.Refresh(db, p)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		auth.SetPrincipal(c, p)
		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <t>". Browsers cannot set headers on
// a websocket handshake, so ?token= is accepted as well.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return header
	}
	return c.Query("token")
}
