package settingsControllers

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	orderControllers "github.com/junaidrashid-git/crm-admin-api/controllers/order"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

const maxKeyLength = 100

var (
	keyPattern      = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// normalizers validate and canonicalise well-known keys.
var normalizers = map[string]func(string) (string, error){
	orderControllers.CurrencySettingKey: func(v string) (string, error) {
		v = strings.ToUpper(strings.TrimSpace(v))
		if !currencyPattern.MatchString(v) {
			return "", apperr.Validation("%s must be a three-letter currency code", orderControllers.CurrencySettingKey)
		}
		return v, nil
	},
}

func all(db *gorm.DB) (map[string]string, error) {
	var rows []models.SystemSetting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out, nil
}

func normalize(in map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("No settings given")
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		key = strings.ToLower(strings.TrimSpace(key))
		if len(key) > maxKeyLength || !keyPattern.MatchString(key) {
			return nil, apperr.Validation("Invalid setting key %q", key)
		}
		if fn, ok := normalizers[key]; ok {
			v, err := fn(value)
			if err != nil {
				return nil, err
			}
			value = v
		}
		out[key] = value
	}
	return out, nil
}

// GET /api/settings
func GetSettings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := all(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}

// UpsertSettings handles PUT /api/settings with a flat {"key": "value"} body.
// Keys not named in the body are left as they are.
func UpsertSettings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input map[string]string
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Settings must be an object of string values"))
			return
		}
		changes, err := normalize(input)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		keys := make([]string, 0, len(changes))
		for k := range changes {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var settings map[string]string
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := all(tx)
			if err != nil {
				return err
			}
			now := time.Now()
			rows := make([]models.SystemSetting, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, models.SystemSetting{Key: k, Value: changes[k], UpdatedAt: now})
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&rows).Error; err != nil {
				return fmt.Errorf("upsert settings: %w", err)
			}
			if settings, err = all(tx); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "settings.update", EntityType: "settings", Before: before, After: settings,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}
