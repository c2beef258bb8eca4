package orderControllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/events"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/payment"
)

// CurrencySettingKey is the system setting holding the ISO currency code.
const (
	CurrencySettingKey = "store.currency"
	defaultCurrency    = "AED"
)

// Gateway creates hosted payment pages.
type Gateway interface {
	CreatePayment(ctx context.Context, creds payment.Credentials, req payment.PaymentRequest) (*payment.PaymentPage, error)
}

// PaymentOptions configures the card payment flow.
type PaymentOptions struct {
	Gateway       Gateway
	ReturnBaseURL string // customer-facing site the gateway redirects back to
}

func currency(db *gorm.DB) string {
	var setting models.SystemSetting
	if err := db.Where(&models.SystemSetting{Key: CurrencySettingKey}).First(&setting).Error; err != nil || setting.Value == "" {
		return defaultCurrency
	}
	return setting.Value
}

// StartCardPaymentHandler handles POST /api/orders/:id/pay. It opens a Telr
// hosted page for a customer's unpaid card order.
func StartCardPaymentHandler(db *gorm.DB, opts PaymentOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := orderID(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var order models.Order
		if err := db.Preload("Customer").First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperr.Respond(c, ErrOrderNotFound)
				return
			}
			apperr.Respond(c, err)
			return
		}
		if order.CustomerID != p.ID || !p.IsCustomer() {
			apperr.Respond(c, apperr.Forbidden("You can only pay for your own orders"))
			return
		}
		switch {
		case order.PaymentMethod != models.PaymentMethodCard:
			apperr.Respond(c, apperr.Validation("Order is not payable by card"))
			return
		case order.PaymentStatus == models.PaymentStatusPaid:
			apperr.Respond(c, apperr.Validation("Order is already paid"))
			return
		case order.Status == models.OrderStatusCancelled:
			apperr.Respond(c, apperr.Validation("Cancelled orders cannot be paid"))
			return
		}

		settings, err := loadPaymentSettings(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if !settings.CardEnabled {
			apperr.Respond(c, apperr.Validation("Card payments are disabled"))
			return
		}

		customer := payment.Customer{}
		if order.Customer != nil {
			customer = payment.Customer{
				Name:     order.Customer.Name,
				Email:    order.Customer.Email,
				Phone:    order.Customer.Phone,
				Line1:    order.ShippingAddress.Street,
				City:     order.ShippingAddress.City,
				Region:   order.ShippingAddress.State,
				Country:  order.ShippingAddress.Country,
				Postcode: order.ShippingAddress.PostalCode,
			}
		}
		returnURL := func(outcome string) string {
			return fmt.Sprintf("%s/payment/%s?order=%s", opts.ReturnBaseURL, outcome, order.OrderNumber)
		}

		page, err := opts.Gateway.CreatePayment(c.Request.Context(), payment.Credentials{
			StoreID: settings.TelrStoreID,
			AuthKey: settings.TelrAuthKey,
			Test:    settings.TelrMode != "live",
		}, payment.PaymentRequest{
			CartID:        order.OrderNumber,
			Amount:        order.Total.StringFixed(2),
			Currency:      currency(db),
			Description:   "Order " + order.OrderNumber,
			Customer:      customer,
			AuthorisedURL: returnURL("success"),
			DeclinedURL:   returnURL("failed"),
			CancelledURL:  returnURL("cancelled"),
		})
		if err != nil {
			slog.Error("telr create payment failed", "order", order.OrderNumber, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable"})
			return
		}

		if err := db.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("payment_ref", page.Ref).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// RefundDueAction is the audit action for a payment captured on a cancelled order.
const RefundDueAction = "order.payment.refund_due"

// ApplyPaymentResult records a gateway notification against the order whose
// number is the webhook cart id. Repeated notifications for a paid order are
// ignored.
func ApplyPaymentResult(db *gorm.DB, w payment.Webhook) (*models.Order, bool, error) {
	var order models.Order
	changed := false
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_number = ?", w.CartID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			return nil
		}

		before := order
		action := "order.payment"
		switch {
		case w.Approved():
			order.PaymentStatus = models.PaymentStatusPaid
			if order.Status == models.OrderStatusCancelled {
				// Money arrived for a cancelled order and must be refunded by hand
				action = RefundDueAction
				slog.Warn("payment approved for cancelled order", "order", order.OrderNumber, "ref", w.Ref)
			}
		case w.Status == "H":
			// On hold for review; a later notification settles it
			return nil
		default:
			order.PaymentStatus = models.PaymentStatusFailed
		}
		if w.Ref != "" {
			order.PaymentRef = w.Ref
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"payment_status": order.PaymentStatus,
			"payment_ref":    order.PaymentRef,
		}).Error; err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		changed = true

		return audit.Record(tx, audit.Entry{
			Actor:      auth.SystemPrincipal.Actor(),
			Action:     action,
			EntityType: "order",
			EntityID:   order.ID,
			Before:     before,
			After:      order,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return &order, changed, nil
}

// TelrWebhookHandler handles POST /payment/webhook. Signature checks run in
// middleware before this.
func TelrWebhookHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse form"})
			return
		}
		w, err := payment.ParseWebhook(c.Request.PostForm)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order, changed, err := ApplyPaymentResult(db, w)
		if err != nil {
			slog.Error("telr webhook failed", "cart_id", w.CartID, "error", err)
			apperr.Respond(c, err)
			return
		}
		if changed && order.PaymentStatus == models.PaymentStatusPaid {
			pub.Broadcast(events.Event{Type: events.OrderPaid, Order: order})
		}
		c.JSON(http.StatusOK, gin.H{"message": "Payment status recorded", "payment_status": order.PaymentStatus})
	}
}
