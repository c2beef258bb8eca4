package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

// Require lets the request through when the principal holds any of actions.
// Must run after RequireSession.
func Require(actions ...permissions.Action) gin.HandlerFunc {
	if len(actions) == 0 {
		panic("middleware.Require: no actions given")
	}
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		for _, action := range actions {
			if p.Can(action) {
				c.Next()
				return
			}
		}
		apperr.Respond(c, permissions.Check(p.Role, actions[0]))
	}
}

// StaffOnly rejects customer sessions.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if !p.Role.IsStaff() {
			apperr.Respond(c, apperr.Forbidden("Staff account required"))
			return
		}
		c.Next()
	}
}
