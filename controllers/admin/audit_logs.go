package adminController

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

func uintQuery(c *gin.Context, name string) (uint, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, apperr.Validation("Invalid %s", name)
	}
	return uint(n), nil
}

// GET /api/audit-logs?entity_type=order&entity_id=3&actor_type=ADMIN&actor_id=1&limit=50
func ListAuditLogs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := audit.Filter{
			EntityType: c.Query("entity_type"),
			ActorType:  models.ActorType(strings.ToUpper(c.Query("actor_type"))),
		}
		var err error
		if f.EntityID, err = uintQuery(c, "entity_id"); err != nil {
			apperr.Respond(c, err)
			return
		}
		if f.ActorID, err = uintQuery(c, "actor_id"); err != nil {
			apperr.Respond(c, err)
			return
		}
		if v := c.Query("limit"); v != "" {
			if f.Limit, err = strconv.Atoi(v); err != nil {
				apperr.Respond(c, apperr.Validation("Invalid limit"))
				return
			}
		}

		logs, err := audit.List(db, f)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}
