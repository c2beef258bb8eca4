package emailControllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/mailer"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

type CampaignRequest struct {
	TemplateID  uint   `json:"template_id" binding:"required"`
	CustomerIDs []uint `json:"customer_ids"`
	TagIDs      []uint `json:"tag_ids"`
}

type TestSendRequest struct {
	TemplateID uint   `json:"template_id" binding:"required"`
	To         string `json:"to" binding:"required"`
	Name       string `json:"name"`
}

// CampaignResult counts outcomes per targeted customer.
type CampaignResult struct {
	Targeted int `json:"targeted"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"` // opted out
}

// recipients resolves customers named directly or through any of the tags.
func recipients(db *gorm.DB, customerIDs, tagIDs []uint) ([]models.Customer, error) {
	q := db.Model(&models.Customer{})
	byTag := db.Model(&models.CustomerTag{}).Select("customer_id").Where("tag_id IN ?", tagIDs)
	switch {
	case len(customerIDs) > 0 && len(tagIDs) > 0:
		q = q.Where("id IN ? OR id IN (?)", customerIDs, byTag)
	case len(customerIDs) > 0:
		q = q.Where("id IN ?", customerIDs)
	default:
		q = q.Where("id IN (?)", byTag)
	}
	var customers []models.Customer
	if err := q.Order("id").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// deliver renders and sends one message and records the attempt.
func deliver(ctx context.Context, db *gorm.DB, sender mailer.Sender, t *models.EmailTemplate, customerID *uint, r mailer.Recipient) (models.EmailLog, error) {
	entry := models.EmailLog{
		TemplateID: &t.ID,
		CustomerID: customerID,
		ToAddress:  r.Email,
		Subject:    t.Subject,
		SentAt:     time.Now(),
	}
	subject, body, err := mailer.Render(t.Subject, t.Body, r)
	if err == nil {
		entry.Subject = subject
		err = sender.Send(ctx, mailer.Message{To: r.Email, Subject: subject, HTML: body})
	}
	entry.Status = models.EmailSent
	if err != nil {
		entry.Status = models.EmailFailed
		entry.Error = err.Error()
	}
	if logErr := db.Create(&entry).Error; logErr != nil {
		return entry, logErr
	}
	return entry, err
}

// -------- Handlers --------

// SendCampaign handles POST /api/email/campaigns. Messages go out one by one
// within the request; opted-out customers are counted but never contacted.
func SendCampaign(db *gorm.DB, sender mailer.Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var req CampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("template_id is required"))
			return
		}
		if len(req.CustomerIDs) == 0 && len(req.TagIDs) == 0 {
			apperr.Respond(c, apperr.Validation("Select customers or tags to send to"))
			return
		}

		t, err := findTemplate(db, req.TemplateID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		customers, err := recipients(db, req.CustomerIDs, req.TagIDs)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		// 1️⃣ Send sequentially, one log row per attempt
		result := CampaignResult{Targeted: len(customers)}
		for i := range customers {
			customer := customers[i]
			if customer.EmailOptOut {
				result.Skipped++
				continue
			}
			_, err := deliver(c.Request.Context(), db, sender, t, &customer.ID,
				mailer.Recipient{Name: customer.Name, Email: customer.Email})
			if err != nil {
				slog.Warn("campaign email failed", "template_id", t.ID, "customer_id", customer.ID, "error", err)
				result.Failed++
				continue
			}
			result.Sent++
		}

		// 2️⃣ Record the campaign itself
		if err := audit.Record(db, audit.Entry{
			Actor: p.Actor(), Action: "email.campaign", EntityType: "email_template", EntityID: t.ID, After: result,
		}); err != nil {
			slog.Error("record campaign audit", "template_id", t.ID, "error", err)
		}
		slog.Info("campaign sent", "template_id", t.ID, "sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
		c.JSON(http.StatusOK, result)
	}
}

// SendTestEmail handles POST /api/email/test. It renders a template for an
// arbitrary address without touching any customer.
func SendTestEmail(db *gorm.DB, sender mailer.Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TestSendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Respond(c, apperr.Validation("template_id and to are required"))
			return
		}
		to, err := auth.ValidateEmail(req.To)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		t, err := findTemplate(db, req.TemplateID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		name := req.Name
		if name == "" {
			name = sampleRecipient.Name
		}

		entry, err := deliver(c.Request.Context(), db, sender, t, nil, mailer.Recipient{Name: name, Email: to})
		if err != nil {
			slog.Warn("test email failed", "template_id", t.ID, "to", to, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send test email"})
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// ListLogs handles GET /api/email/logs, newest first.
func ListLogs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 200 {
			limit = 50
		}

		filtered := func() (*gorm.DB, error) {
			q := db.Model(&models.EmailLog{})
			if v := c.Query("status"); v != "" {
				status := models.EmailStatus(v)
				if status != models.EmailSent && status != models.EmailFailed {
					return nil, apperr.Validation("Invalid status %q", v)
				}
				q = q.Where("status = ?", status)
			}
			for _, col := range []string{"customer_id", "template_id"} {
				if v := c.Query(col); v != "" {
					id, err := strconv.ParseUint(v, 10, 64)
					if err != nil {
						return nil, apperr.Validation("Invalid %s", col)
					}
					q = q.Where(col+" = ?", id)
				}
			}
			return q, nil
		}

		q, err := filtered()
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var total int64
		if err := q.Count(&total).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		q, _ = filtered()
		var logs []models.EmailLog
		if err := q.Order("sent_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&logs).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total, "page": page, "limit": limit})
	}
}
