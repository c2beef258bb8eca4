package paymentControllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

// QRImagePath is the URL prefix of bank transfer QR images, relative to the
// public base URL.
const QRImagePath = "/uploads/qr"

var (
	unsafeChars  = regexp.MustCompile(`[^\w\-.]`)
	qrExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}
)

// removeQR deletes a previously uploaded QR image. Foreign URLs are ignored.
func removeQR(saveDir, publicBaseURL, url string) {
	if url == "" || !strings.HasPrefix(url, publicBaseURL+QRImagePath+"/") {
		return
	}
	if err := os.Remove(filepath.Join(saveDir, path.Base(url))); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove bank transfer qr", "url", url, "error", err)
	}
}

func setQR(db *gorm.DB, p auth.Principal, url string) (*models.PaymentSettings, string, error) {
	var saved *models.PaymentSettings
	var previous string
	err := db.Transaction(func(tx *gorm.DB) error {
		before, err := load(tx)
		if err != nil {
			return err
		}
		previous = before.BankTransferQR
		if err := tx.Model(&models.PaymentSettings{}).Where("id = ?", models.PaymentSettingsID).
			Update("bank_transfer_qr", url).Error; err != nil {
			return fmt.Errorf("set bank transfer qr: %w", err)
		}
		if saved, err = load(tx); err != nil {
			return err
		}
		return audit.Record(tx, audit.Entry{
			Actor: p.Actor(), Action: "payment_settings.qr", EntityType: "payment_settings",
			EntityID: models.PaymentSettingsID,
			Before:   gin.H{"bank_transfer_qr": previous},
			After:    gin.H{"bank_transfer_qr": url},
		})
	})
	return saved, previous, err
}

// UploadBankTransferQR handles POST /api/payment-settings/qr (multipart field
// "file"). The image is shown to customers who pay by bank transfer.
func UploadBankTransferQR(db *gorm.DB, uploadDir, publicBaseURL string) gin.HandlerFunc {
	saveDir := filepath.Join(uploadDir, "qr")
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		file, err := c.FormFile("file")
		if err != nil {
			apperr.Respond(c, apperr.Validation("No file uploaded"))
			return
		}
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !qrExtensions[ext] {
			apperr.Respond(c, apperr.Validation("Unsupported image type %q", ext))
			return
		}

		// Sanitize filename: remove any special chars
		cleanName := unsafeChars.ReplaceAllString(strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename)), "_")
		filename := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), cleanName, ext)

		if err := os.MkdirAll(saveDir, os.ModePerm); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to create upload folder", err))
			return
		}
		if err := c.SaveUploadedFile(file, filepath.Join(saveDir, filename)); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to save file", err))
			return
		}

		fileURL := publicBaseURL + QRImagePath + "/" + filename
		saved, previous, err := setQR(db, p, fileURL)
		if err != nil {
			_ = os.Remove(filepath.Join(saveDir, filename))
			apperr.Respond(c, err)
			return
		}
		removeQR(saveDir, publicBaseURL, previous)

		slog.Info("bank transfer qr uploaded", "file", file.Filename, "url", fileURL)
		c.JSON(http.StatusOK, view(*saved))
	}
}

// DELETE /api/payment-settings/qr
func DeleteBankTransferQR(db *gorm.DB, uploadDir, publicBaseURL string) gin.HandlerFunc {
	saveDir := filepath.Join(uploadDir, "qr")
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		current, err := load(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if current.BankTransferQR == "" {
			apperr.Respond(c, apperr.NotFound("No QR image uploaded"))
			return
		}
		saved, previous, err := setQR(db, p, "")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		removeQR(saveDir, publicBaseURL, previous)
		c.JSON(http.StatusOK, view(*saved))
	}
}
