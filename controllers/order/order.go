package orderControllers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
	"github.com/junaidrashid-git/crm-admin-api/shipping"
)

const (
	CustomerCancelReason = "Cancelled by customer"
	AdminCancelReason    = "Cancelled by administrator"
)

var ErrOrderNotFound = apperr.NotFound("Order not found")

// -------- Request Structs --------
type PlaceOrderRequest struct {
	Items           []shipping.Item `json:"items" binding:"required"`
	PaymentMethod   string          `json:"payment_method" binding:"required"` // CARD, COD or BANK_TRANSFER
	ShippingAddress *models.Address `json:"shipping_address"`
	Note            string          `json:"note"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// -------- Helpers --------

// transitions lists the statuses each status may move to. Terminal statuses
// have no entry.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending: {
		models.OrderStatusShipped, models.OrderStatusBackordered,
		models.OrderStatusCompleted, models.OrderStatusCancelled,
	},
	models.OrderStatusBackordered: {
		models.OrderStatusPending, models.OrderStatusShipped, models.OrderStatusCancelled,
	},
	models.OrderStatusShipped: {
		models.OrderStatusCompleted,
	},
}

// CanTransition reports whether an admin may move an order from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Generate unique order number
func generateOrderNumber(now time.Time) string {
	// Example: ORD-20250908130500-1f0c2a9b
	return "ORD-" + now.Format("20060102150405") + "-" + uuid.NewString()[:8]
}

// lockOrder loads the order row FOR UPDATE together with its items.
func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return &order, nil
}

// mergeItems sums quantities of repeated products and orders the result by
// product id so concurrent placements lock rows in the same order.
func mergeItems(items []shipping.Item) ([]shipping.Item, error) {
	totals := make(map[uint]int, len(items))
	for _, it := range items {
		sum := totals[it.ProductID] + it.Quantity
		if it.Quantity < 1 || sum < it.Quantity || sum > shipping.MaxQuantity {
			return nil, apperr.Validation("Quantity for product %d must not exceed %d", it.ProductID, shipping.MaxQuantity)
		}
		totals[it.ProductID] = sum
	}
	out := make([]shipping.Item, 0, len(totals))
	for id, qty := range totals {
		out = append(out, shipping.Item{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func loadPaymentSettings(db *gorm.DB) (models.PaymentSettings, error) {
	var settings models.PaymentSettings
	if err := db.First(&settings, models.PaymentSettingsID).Error; err != nil {
		return settings, fmt.Errorf("load payment settings: %w", err)
	}
	return settings, nil
}

// -------- Core Logic --------

// PlaceOrder creates an order for the signed-in customer. Stock is reserved,
// shipping is priced and the order is written in one transaction.
func PlaceOrder(db *gorm.DB, p auth.Principal, req PlaceOrderRequest) (*models.Order, error) {
	if !p.IsCustomer() {
		return nil, apperr.Forbidden("Only customers can place orders")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("Order must contain at least one item")
	}
	if err := shipping.ValidateItems(req.Items); err != nil {
		return nil, err
	}
	items, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}
	method, ok := models.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, apperr.Validation("Invalid payment method %q", req.PaymentMethod)
	}
	settings, err := loadPaymentSettings(db)
	if err != nil {
		return nil, err
	}
	if !settings.Accepts(method) {
		return nil, apperr.Validation("Payment method %s is not available", method)
	}

	var order models.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		// 1️⃣ Load the buyer for the default shipping address
		var customer models.Customer
		if err := tx.First(&customer, p.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return auth.ErrAccountGone
			}
			return fmt.Errorf("load customer: %w", err)
		}

		// 2️⃣ Lock products, check and deduct stock
		var lines []shipping.Line
		var orderItems []models.OrderItem
		for _, item := range items {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Preload("Category").
				First(&product, "id = ?", item.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.Validation("Product %d not found", item.ProductID)
				}
				return fmt.Errorf("lock product: %w", err)
			}
			if !product.Active {
				return apperr.Validation("Product %s is not available", product.Name)
			}
			if product.Stock < item.Quantity {
				return apperr.Validation("Insufficient stock for product: %s", product.Name)
			}

			if err := tx.Model(&models.Product{}).Where("id = ?", product.ID).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity)).Error; err != nil {
				return fmt.Errorf("deduct stock: %w", err)
			}

			lines = append(lines, shipping.LineFor(product, item.Quantity))
			orderItems = append(orderItems, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				Quantity:    item.Quantity,
			})
		}

		// 3️⃣ Shipping calculation
		book, err := shipping.LoadRateBook(tx)
		if err != nil {
			return err
		}
		quote := shipping.Calculate(lines, book)

		codFee := decimal.Zero
		if method == models.PaymentMethodCOD {
			codFee = settings.CODFee
		}

		address := customer.Address
		if req.ShippingAddress != nil {
			address = *req.ShippingAddress
		}

		// 4️⃣ Create order
		order = models.Order{
			OrderNumber:     generateOrderNumber(time.Now()),
			CustomerID:      customer.ID,
			Items:           orderItems,
			Subtotal:        quote.SubtotalAmount,
			ShippingFee:     quote.ShippingFee,
			CODFee:          codFee,
			Total:           quote.TotalAmount.Add(codFee),
			Status:          models.OrderStatusPending,
			PaymentMethod:   method,
			PaymentStatus:   models.PaymentStatusUnpaid,
			ShippingAddress: address,
			Note:            strings.TrimSpace(req.Note),
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		return audit.Record(tx, audit.Entry{
			Actor:      p.Actor(),
			Action:     "order.place",
			EntityType: "order",
			EntityID:   order.ID,
			After:      order,
		})
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels an order and puts every item's quantity back into stock.
// The status change, the stock increments and the audit row commit together.
// Customers may only cancel their own orders; shipped, completed and already
// cancelled orders are refused.
func CancelOrder(db *gorm.DB, orderID uint, p auth.Principal, reason string) (*models.Order, error) {
	action := permissions.OrdersCancel
	if p.IsCustomer() {
		action = permissions.OrdersCancelOwn
	}
	if err := permissions.Check(p.Role, action); err != nil {
		return nil, err
	}

	var order *models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		// 1️⃣ Lock the order row
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}

		// 2️⃣ Ownership and state checks
		if p.IsCustomer() && order.CustomerID != p.ID {
			return apperr.Forbidden("You can only cancel your own orders")
		}
		switch order.Status {
		case models.OrderStatusCancelled:
			return apperr.Validation("Order is already cancelled")
		case models.OrderStatusShipped:
			return apperr.Validation("Shipped orders cannot be cancelled")
		case models.OrderStatusCompleted:
			return apperr.Validation("Completed orders cannot be cancelled")
		}

		before := *order
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = AdminCancelReason
			if p.IsCustomer() {
				reason = CustomerCancelReason
			}
		}

		// 3️⃣ Mark cancelled
		now := time.Now()
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":        models.OrderStatusCancelled,
			"cancelled_at":  now,
			"cancelled_by":  p.ActorType(),
			"cancel_reason": reason,
		}).Error; err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		order.Status = models.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelledBy = p.ActorType()
		order.CancelReason = reason

		// 4️⃣ Restore stock, including products deleted since the order was placed
		for _, item := range order.Items {
			res := tx.Unscoped().Model(&models.Product{}).Where("id = ?", item.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("restore stock: %w", res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("restore stock: product %d missing", item.ProductID)
			}
		}

		// 5️⃣ Audit in the same transaction
		return audit.Record(tx, audit.Entry{
			Actor:      p.Actor(),
			Action:     "order.cancel",
			EntityType: "order",
			EntityID:   order.ID,
			Before:     before,
			After:      order,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus moves an order along the admin workflow. A move to
// CANCELLED is handled by CancelOrder so stock is restored on every path.
func UpdateOrderStatus(db *gorm.DB, orderID uint, target string, p auth.Principal, reason string) (*models.Order, error) {
	if err := permissions.Check(p.Role, permissions.OrdersUpdate); err != nil {
		return nil, err
	}
	status, ok := models.ParseOrderStatus(target)
	if !ok {
		return nil, apperr.Validation("Invalid order status %q", target)
	}
	if status == models.OrderStatusCancelled {
		return CancelOrder(db, orderID, p, reason)
	}

	var order *models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == status {
			return apperr.Validation("Order is already %s", status)
		}
		if !CanTransition(order.Status, status) {
			return apperr.Validation("Cannot change order status from %s to %s", order.Status, status)
		}

		before := *order
		now := time.Now()
		updates := map[string]interface{}{"status": status}
		switch status {
		case models.OrderStatusShipped:
			updates["shipped_at"] = now
			order.ShippedAt = &now
		case models.OrderStatusCompleted:
			updates["completed_at"] = now
			order.CompletedAt = &now
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		order.Status = status

		return audit.Record(tx, audit.Entry{
			Actor:      p.Actor(),
			Action:     "order.status",
			EntityType: "order",
			EntityID:   order.ID,
			Before:     before,
			After:      order,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
