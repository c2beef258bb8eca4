package productcontroller

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

// ProductImagePath is the public URL prefix of uploaded product images.
const ProductImagePath = "/uploads/products"

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// UploadProductImage handles POST /api/products/:id/image (multipart field
// "image"). Files are stored under uploadDir/products and the previous image
// is removed.
func UploadProductImage(db *gorm.DB, uploadDir string) gin.HandlerFunc {
	saveDir := filepath.Join(uploadDir, "products")
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
		product, err := findProduct(db, id)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			apperr.Respond(c, apperr.Validation("Image is required"))
			return
		}
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !imageExtensions[ext] {
			apperr.Respond(c, apperr.Validation("Unsupported image type %q", ext))
			return
		}
		base := strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
		base = strings.ReplaceAll(base, " ", "_")
		filename := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), base, ext)

		if err := os.MkdirAll(saveDir, os.ModePerm); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to create upload folder", err))
			return
		}
		if err := c.SaveUploadedFile(file, filepath.Join(saveDir, filename)); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to save image", err))
			return
		}

		imageURL := ProductImagePath + "/" + filename
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Product{}).Where("id = ?", id).Update("image", imageURL).Error; err != nil {
				return fmt.Errorf("set product image: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor:      p.Actor(),
				Action:     "product.image",
				EntityType: "product",
				EntityID:   id,
				Before:     gin.H{"image": product.Image},
				After:      gin.H{"image": imageURL},
			})
		})
		if err != nil {
			_ = os.Remove(filepath.Join(saveDir, filename))
			apperr.Respond(c, err)
			return
		}

		// Delete old image if it was one of ours
		if strings.HasPrefix(product.Image, ProductImagePath+"/") {
			if err := os.Remove(filepath.Join(saveDir, filepath.Base(product.Image))); err != nil && !os.IsNotExist(err) {
				slog.Warn("remove old product image", "path", product.Image, "error", err)
			}
		}
		product.Image = imageURL
		c.JSON(http.StatusOK, product)
	}
}
