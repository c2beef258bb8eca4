package adminController

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

var ErrAlreadyApproved = apperr.Conflict("Admin is already approved")

// ApproveInput optionally assigns a role on approval. Google sign-ins arrive
// as OPERATOR.
type ApproveInput struct {
	Role string `json:"role"`
}

// ListPendingAdmins returns all admins awaiting approval.
func ListPendingAdmins(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var pending []models.Admin
		if err := db.Where("approved = ?", false).Order("created_at").Find(&pending).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, pending)
	}
}

// POST /api/admins/:id/approve
func ApproveAdmin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := adminID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input ApproveInput
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				apperr.Respond(c, apperr.Validation("Invalid request payload"))
				return
			}
		}
		updates := map[string]interface{}{"approved": true}
		if input.Role != "" {
			role, err := permissions.ParseStaffRole(input.Role)
			if err != nil {
				apperr.Respond(c, err)
				return
			}
			updates["role"] = role
		}

		var admin *models.Admin
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findAdmin(tx, id)
			if err != nil {
				return err
			}
			if before.Approved {
				return ErrAlreadyApproved
			}
			if err := tx.Model(&models.Admin{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("approve admin: %w", err)
			}
			if admin, err = findAdmin(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "admin.approve", EntityType: "admin", EntityID: id, Before: before, After: admin,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, admin)
	}
}

// RejectAdmin deletes a pending sign-up. Approved accounts go through DeleteAdmin.
func RejectAdmin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := adminID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			admin, err := findAdmin(tx, id)
			if err != nil {
				return err
			}
			if admin.Approved {
				return ErrAlreadyApproved
			}
			if err := tx.Delete(&models.Admin{}, id).Error; err != nil {
				return fmt.Errorf("reject admin: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "admin.reject", EntityType: "admin", EntityID: id, Before: admin,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Admin rejected"})
	}
}
