package tagControllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/export"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

var (
	ErrTagNotFound = apperr.NotFound("Tag not found")
	ErrTagExists   = apperr.Conflict("Tag name already exists")

	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

type TagInput struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"` // #rrggbb, optional
}

func (in TagInput) normalize() (models.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Tag{}, apperr.Validation("Name is required")
	}
	color := strings.TrimSpace(in.Color)
	if color != "" && !colorPattern.MatchString(color) {
		return models.Tag{}, apperr.Validation("Color must look like #1a2b3c")
	}
	return models.Tag{Name: name, Color: strings.ToLower(color)}, nil
}

// TagWithCount is a tag and how many customers carry it.
type TagWithCount struct {
	models.Tag
	CustomerCount int64 `json:"customer_count"`
}

func tagID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid tag ID")
	}
	return uint(id), nil
}

func findTag(db *gorm.DB, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := db.First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

func nameTaken(db *gorm.DB, name string, exceptID uint) error {
	var n int64
	if err := db.Model(&models.Tag{}).Where("LOWER(name) = LOWER(?) AND id <> ?", name, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrTagExists
	}
	return nil
}

// withCounts loads every tag ordered by name with its customer count.
func withCounts(db *gorm.DB) ([]TagWithCount, error) {
	var tags []models.Tag
	if err := db.Order("name").Find(&tags).Error; err != nil {
		return nil, err
	}
	type countRow struct {
		TagID uint
		N     int64
	}
	var rows []countRow
	if err := db.Model(&models.CustomerTag{}).
		Select("tag_id, COUNT(*) AS n").
		Group("tag_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.TagID] = r.N
	}
	out := make([]TagWithCount, 0, len(tags))
	for _, t := range tags {
		out = append(out, TagWithCount{Tag: t, CustomerCount: counts[t.ID]})
	}
	return out, nil
}

// GET /api/tags
func ListTags(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tags, err := withCounts(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, tags)
	}
}

// POST /api/tags
func CreateTag(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input TagInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		tag, err := input.normalize()
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := nameTaken(tx, tag.Name, 0); err != nil {
				return err
			}
			if err := tx.Create(&tag).Error; err != nil {
				return fmt.Errorf("create tag: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "tag.create", EntityType: "tag", EntityID: tag.ID, After: tag,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, tag)
	}
}

// PUT /api/tags/:id
func UpdateTag(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := tagID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input TagInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		next, err := input.normalize()
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var tag *models.Tag
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findTag(tx, id)
			if err != nil {
				return err
			}
			if err := nameTaken(tx, next.Name, id); err != nil {
				return err
			}
			if err := tx.Model(&models.Tag{}).Where("id = ?", id).
				Updates(map[string]interface{}{"name": next.Name, "color": next.Color}).Error; err != nil {
				return fmt.Errorf("update tag: %w", err)
			}
			if tag, err = findTag(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "tag.update", EntityType: "tag", EntityID: id, Before: before, After: tag,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, tag)
	}
}

// DELETE /api/tags/:id removes the tag from every customer as well.
func DeleteTag(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := tagID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			tag, err := findTag(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Where("tag_id = ?", id).Delete(&models.CustomerTag{}).Error; err != nil {
				return fmt.Errorf("untag customers: %w", err)
			}
			if err := tx.Delete(&models.Tag{}, id).Error; err != nil {
				return fmt.Errorf("delete tag: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "tag.delete", EntityType: "tag", EntityID: id, Before: tag,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Tag deleted successfully"})
	}
}

// GET /api/tags/export
func ExportTagsCSV(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tags, err := withCounts(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		rows := make([]export.TagRow, 0, len(tags))
		for _, t := range tags {
			rows = append(rows, export.TagRow{Tag: t.Tag, Customers: t.CustomerCount})
		}
		var buf bytes.Buffer
		if err := export.Tags(&buf, rows); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to write CSV", err))
			return
		}
		c.Header("Content-Disposition", "attachment; filename=tags.csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}
