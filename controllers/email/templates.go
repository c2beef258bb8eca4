package emailControllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/mailer"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

var (
	ErrTemplateNotFound = apperr.NotFound("Email template not found")
	ErrTemplateExists   = apperr.Conflict("An email template with this name already exists")
)

type TemplateInput struct {
	Name    string `json:"name" binding:"required"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

type UpdateTemplateInput struct {
	Name    *string `json:"name"`
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

var sampleRecipient = mailer.Recipient{Name: "Sample Customer", Email: "sample@example.com"}

// checkTemplate parses subject and body and renders them once, so unknown
// fields like {{.Phone}} are caught on save rather than mid-campaign.
func checkTemplate(subject, body string) error {
	if err := mailer.Validate(subject, body); err != nil {
		return apperr.Validation("Invalid template: %v", err)
	}
	if _, _, err := mailer.Render(subject, body, sampleRecipient); err != nil {
		return apperr.Validation("Invalid template: %v", err)
	}
	return nil
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid template id")
	}
	return uint(id), nil
}

func findTemplate(db *gorm.DB, id uint) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	if err := db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

func nameTaken(db *gorm.DB, name string, exceptID uint) error {
	var n int64
	if err := db.Model(&models.EmailTemplate{}).
		Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrTemplateExists
	}
	return nil
}

// -------- Handlers --------

func ListTemplates(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var templates []models.EmailTemplate
		if err := db.Order("name").Find(&templates).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, templates)
	}
}

func GetTemplate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		t, err := findTemplate(db, id)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func CreateTemplate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input TemplateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Name, subject and body are required"))
			return
		}
		t := models.EmailTemplate{
			Name:    strings.TrimSpace(input.Name),
			Subject: strings.TrimSpace(input.Subject),
			Body:    input.Body,
		}
		if t.Name == "" || t.Subject == "" {
			apperr.Respond(c, apperr.Validation("Name and subject must not be empty"))
			return
		}
		if err := checkTemplate(t.Subject, t.Body); err != nil {
			apperr.Respond(c, err)
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := nameTaken(tx, t.Name, 0); err != nil {
				return err
			}
			if err := tx.Create(&t).Error; err != nil {
				return fmt.Errorf("create template: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "email_template.create", EntityType: "email_template", EntityID: t.ID, After: t,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func UpdateTemplate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := parseID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input UpdateTemplateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid request payload"))
			return
		}

		var t *models.EmailTemplate
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findTemplate(tx, id)
			if err != nil {
				return err
			}
			next := *before
			if input.Name != nil {
				next.Name = strings.TrimSpace(*input.Name)
				if next.Name == "" {
					return apperr.Validation("Name must not be empty")
				}
				if err := nameTaken(tx, next.Name, id); err != nil {
					return err
				}
			}
			if input.Subject != nil {
				next.Subject = strings.TrimSpace(*input.Subject)
			}
			if input.Body != nil {
				next.Body = *input.Body
			}
			if err := checkTemplate(next.Subject, next.Body); err != nil {
				return err
			}

			if err := tx.Model(&models.EmailTemplate{}).Where("id = ?", id).Updates(map[string]interface{}{
				"name": next.Name, "subject": next.Subject, "body": next.Body,
			}).Error; err != nil {
				return fmt.Errorf("update template: %w", err)
			}
			if t, err = findTemplate(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "email_template.update", EntityType: "email_template", EntityID: id,
				Before: before, After: t,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// DeleteTemplate keeps the delivery history; logs lose their template link.
func DeleteTemplate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := parseID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			t, err := findTemplate(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.EmailLog{}).Where("template_id = ?", id).
				Update("template_id", nil).Error; err != nil {
				return fmt.Errorf("detach email logs: %w", err)
			}
			if err := tx.Delete(&models.EmailTemplate{}, id).Error; err != nil {
				return fmt.Errorf("delete template: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "email_template.delete", EntityType: "email_template", EntityID: id, Before: t,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
	}
}
