package adminController

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

var (
	ErrAdminNotFound = apperr.NotFound("Admin not found")
	ErrLastOwner     = apperr.Conflict("At least one owner must remain")
	ErrSelf          = apperr.Validation("You cannot change or remove your own account")
)

type CreateAdminInput struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type RoleInput struct {
	Role string `json:"role" binding:"required"`
}

func adminID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid admin id")
	}
	return uint(id), nil
}

func findAdmin(db *gorm.DB, id uint) (*models.Admin, error) {
	var admin models.Admin
	if err := db.First(&admin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// ensureOwnerRemains fails when removing or demoting admin would leave no
// approved owner.
func ensureOwnerRemains(db *gorm.DB, admin *models.Admin) error {
	if admin.Role != permissions.RoleOwner || !admin.Approved {
		return nil
	}
	var owners int64
	if err := db.Model(&models.Admin{}).
		Where("role = ? AND approved = ? AND id <> ?", permissions.RoleOwner, true, admin.ID).
		Count(&owners).Error; err != nil {
		return err
	}
	if owners == 0 {
		return ErrLastOwner
	}
	return nil
}

// -------- Handlers --------

// GET /api/admins
func GetAllAdmins(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Order("id")
		if v := c.Query("approved"); v != "" {
			approved, err := strconv.ParseBool(v)
			if err != nil {
				apperr.Respond(c, apperr.Validation("approved must be true or false"))
				return
			}
			q = q.Where("approved = ?", approved)
		}
		var admins []models.Admin
		if err := q.Find(&admins).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, admins)
	}
}

// POST /api/admins creates an approved password account.
func CreateAdmin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input CreateAdminInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Email, password and role are required"))
			return
		}
		role, err := permissions.ParseStaffRole(input.Role)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		admin, err := auth.CreateAdmin(db, auth.NewAdmin{
			Email: input.Email, Name: input.Name, Password: input.Password, Role: role,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if err := audit.Record(db, audit.Entry{
			Actor: p.Actor(), Action: "admin.create", EntityType: "admin", EntityID: admin.ID, After: admin,
		}); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, admin)
	}
}

// PUT /api/admins/:id/role
func ChangeRole(db *gorm.DB) gin.HandlerFunc {
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
		if !p.IsCustomer() && p.ID == id {
			apperr.Respond(c, ErrSelf)
			return
		}
		var input RoleInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Role is required"))
			return
		}
		role, err := permissions.ParseStaffRole(input.Role)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var admin *models.Admin
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findAdmin(tx, id)
			if err != nil {
				return err
			}
			if role != permissions.RoleOwner {
				if err := ensureOwnerRemains(tx, before); err != nil {
					return err
				}
			}
			if err := tx.Model(&models.Admin{}).Where("id = ?", id).Update("role", role).Error; err != nil {
				return fmt.Errorf("update role: %w", err)
			}
			if admin, err = findAdmin(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "admin.role", EntityType: "admin", EntityID: id, Before: before, After: admin,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, admin)
	}
}

// DELETE /api/admins/:id
func DeleteAdmin(db *gorm.DB) gin.HandlerFunc {
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
		if !p.IsCustomer() && p.ID == id {
			apperr.Respond(c, ErrSelf)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			admin, err := findAdmin(tx, id)
			if err != nil {
				return err
			}
			if err := ensureOwnerRemains(tx, admin); err != nil {
				return err
			}
			if err := tx.Delete(&models.Admin{}, id).Error; err != nil {
				return fmt.Errorf("delete admin: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "admin.delete", EntityType: "admin", EntityID: id, Before: admin,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Admin deleted"})
	}
}
