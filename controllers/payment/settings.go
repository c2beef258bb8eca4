package paymentControllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/payment"
)

const (
	ModeLive    = "live"
	ModeSandbox = "sandbox"
)

// ConnectionTester checks gateway credentials.
type ConnectionTester interface {
	TestConnection(ctx context.Context, creds payment.Credentials) error
}

// SettingsView is what staff see. The auth key is never returned and the
// store id is masked.
type SettingsView struct {
	models.PaymentSettings
	TelrStoreID string `json:"telr_store_id"`
	AuthKeySet  bool   `json:"auth_key_set"`
}

type UpdateSettingsInput struct {
	CardEnabled              *bool            `json:"card_enabled"`
	TelrStoreID              *string          `json:"telr_store_id"`
	TelrAuthKey              *string          `json:"telr_auth_key"`
	TelrMode                 *string          `json:"telr_mode"`
	CODEnabled               *bool            `json:"cod_enabled"`
	CODFee                   *decimal.Decimal `json:"cod_fee"`
	BankTransferEnabled      *bool            `json:"bank_transfer_enabled"`
	BankTransferInstructions *string          `json:"bank_transfer_instructions"`
}

// TestConnectionInput optionally carries credentials to try before saving.
type TestConnectionInput struct {
	TelrStoreID string `json:"telr_store_id"`
	TelrAuthKey string `json:"telr_auth_key"`
	TelrMode    string `json:"telr_mode"`
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func view(s models.PaymentSettings) SettingsView {
	return SettingsView{PaymentSettings: s, TelrStoreID: mask(s.TelrStoreID), AuthKeySet: s.TelrAuthKey != ""}
}

func load(db *gorm.DB) (*models.PaymentSettings, error) {
	var s models.PaymentSettings
	if err := db.First(&s, models.PaymentSettingsID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Internal("Payment settings are missing", err)
		}
		return nil, err
	}
	return &s, nil
}

func parseMode(s string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(s))
	if mode != ModeLive && mode != ModeSandbox {
		return "", apperr.Validation("telr_mode must be %q or %q", ModeLive, ModeSandbox)
	}
	return mode, nil
}

// apply merges input into s and checks the result is usable.
func (in UpdateSettingsInput) apply(s *models.PaymentSettings) error {
	if in.CardEnabled != nil {
		s.CardEnabled = *in.CardEnabled
	}
	if in.TelrStoreID != nil {
		s.TelrStoreID = strings.TrimSpace(*in.TelrStoreID)
	}
	if in.TelrAuthKey != nil {
		s.TelrAuthKey = strings.TrimSpace(*in.TelrAuthKey)
	}
	if in.TelrMode != nil {
		mode, err := parseMode(*in.TelrMode)
		if err != nil {
			return err
		}
		s.TelrMode = mode
	}
	if in.CODEnabled != nil {
		s.CODEnabled = *in.CODEnabled
	}
	if in.CODFee != nil {
		if in.CODFee.IsNegative() {
			return apperr.Validation("cod_fee must not be negative")
		}
		s.CODFee = *in.CODFee
	}
	if in.BankTransferEnabled != nil {
		s.BankTransferEnabled = *in.BankTransferEnabled
	}
	if in.BankTransferInstructions != nil {
		s.BankTransferInstructions = *in.BankTransferInstructions
	}

	if s.CardEnabled && (s.TelrStoreID == "" || s.TelrAuthKey == "") {
		return apperr.Validation("Card payments need a Telr store id and auth key")
	}
	if s.BankTransferEnabled && strings.TrimSpace(s.BankTransferInstructions) == "" {
		return apperr.Validation("Bank transfer needs payment instructions")
	}
	return nil
}

// -------- Handlers --------

func GetSettings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := load(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, view(*s))
	}
}

func UpdateSettings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input UpdateSettingsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid request payload"))
			return
		}

		var saved *models.PaymentSettings
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := load(tx)
			if err != nil {
				return err
			}
			next := *before
			if err := input.apply(&next); err != nil {
				return err
			}
			if err := tx.Model(&models.PaymentSettings{}).Where("id = ?", models.PaymentSettingsID).
				Updates(map[string]interface{}{
					"card_enabled":               next.CardEnabled,
					"telr_store_id":              next.TelrStoreID,
					"telr_auth_key":              next.TelrAuthKey,
					"telr_mode":                  next.TelrMode,
					"cod_enabled":                next.CODEnabled,
					"cod_fee":                    next.CODFee,
					"bank_transfer_enabled":      next.BankTransferEnabled,
					"bank_transfer_instructions": next.BankTransferInstructions,
				}).Error; err != nil {
				return fmt.Errorf("update payment settings: %w", err)
			}
			if saved, err = load(tx); err != nil {
				return err
			}
			// Snapshots go through view so the store id stays masked in the log
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "payment_settings.update", EntityType: "payment_settings",
				EntityID: models.PaymentSettingsID, Before: view(*before), After: view(*saved),
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, view(*saved))
	}
}

// TestConnection handles POST /api/payment-settings/test. Credentials in the
// body take precedence over the stored ones.
func TestConnection(db *gorm.DB, tester ConnectionTester) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input TestConnectionInput
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				apperr.Respond(c, apperr.Validation("Invalid request payload"))
				return
			}
		}
		s, err := load(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		creds := payment.Credentials{StoreID: s.TelrStoreID, AuthKey: s.TelrAuthKey, Test: s.TelrMode != ModeLive}
		if input.TelrStoreID != "" {
			creds.StoreID = input.TelrStoreID
		}
		if input.TelrAuthKey != "" {
			creds.AuthKey = input.TelrAuthKey
		}
		if input.TelrMode != "" {
			mode, err := parseMode(input.TelrMode)
			if err != nil {
				apperr.Respond(c, err)
				return
			}
			creds.Test = mode != ModeLive
		}

		err = tester.TestConnection(c.Request.Context(), creds)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"connected": true, "message": "Connected to Telr"})
		case errors.Is(err, payment.ErrNotConfigured):
			apperr.Respond(c, apperr.Validation("Telr store id and auth key are required"))
		case errors.Is(err, payment.ErrInvalidCredentials):
			c.JSON(http.StatusOK, gin.H{"connected": false, "message": "Telr rejected the store credentials"})
		default:
			slog.Error("telr connection test failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable"})
		}
	}
}
