package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string
type PaymentMethod string
type PaymentStatus string

// ActorType names who performed a change: a customer, staff, or the system itself.
type ActorType string

const (
	OrderStatusPending     OrderStatus = "PENDING"     // Placed, awaiting fulfilment
	OrderStatusBackordered OrderStatus = "BACKORDERED" // Waiting on stock from a supplier
	OrderStatusShipped     OrderStatus = "SHIPPED"     // Handed to the carrier
	OrderStatusCompleted   OrderStatus = "COMPLETED"   // Delivered / fulfilled
	OrderStatusCancelled   OrderStatus = "CANCELLED"   // Cancelled before shipping

	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"

	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"

	ActorCustomer ActorType = "CUSTOMER"
	ActorAdmin    ActorType = "ADMIN"
	ActorSystem   ActorType = "SYSTEM"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusBackordered, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled,
}

// OrderStatuses returns the full enumeration.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), orderStatuses...)
}

// ParseOrderStatus maps a case-insensitive string onto the enumeration.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range orderStatuses {
		if status == known {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusCompleted
}

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentMethodCard, PaymentMethodCOD, PaymentMethodBankTransfer:
		return m, true
	}
	return "", false
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerID      uint            `gorm:"index;not null" json:"customer_id"`
	Customer        *Customer       `json:"customer,omitempty"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	CODFee          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"cod_fee"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Status          OrderStatus     `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentRef      string          `json:"payment_ref,omitempty"`
	ShippingAddress Address         `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Note            string          `json:"note"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	CancelledBy     ActorType       `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"index;not null" json:"order_id"`
	ProductID   uint            `gorm:"index;not null" json:"product_id"`
	Product     *Product        `json:"product,omitempty"`
	ProductName string          `json:"product_name"` // snapshot at order time
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
}
