package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSettingsID is the primary key of the only payment settings row.
const PaymentSettingsID = 1

type PaymentSettings struct {
	ID                       uint            `gorm:"primaryKey" json:"-"`
	CardEnabled              bool            `json:"card_enabled"`
	TelrStoreID              string          `json:"telr_store_id"`
	TelrAuthKey              string          `json:"-"`
	TelrMode                 string          `gorm:"type:varchar(10)" json:"telr_mode"`
	CODEnabled               bool            `json:"cod_enabled"`
	CODFee                   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"cod_fee"`
	BankTransferEnabled      bool            `json:"bank_transfer_enabled"`
	BankTransferInstructions string          `gorm:"type:text" json:"bank_transfer_instructions"`
	BankTransferQR           string          `json:"bank_transfer_qr"` // public URL of the uploaded QR image
	UpdatedAt                time.Time       `json:"updated_at"`
}

// Accepts reports whether the given payment method is switched on.
func (s PaymentSettings) Accepts(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCard:
		return s.CardEnabled
	case PaymentMethodCOD:
		return s.CODEnabled
	case PaymentMethodBankTransfer:
		return s.BankTransferEnabled
	}
	return false
}

type SystemSetting struct {
	Key       string    `gorm:"primaryKey;type:varchar(100)" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorType  ActorType `gorm:"type:varchar(20);not null" json:"actor_type"`
	ActorID    uint      `json:"actor_id"`
	ActorRole  string    `gorm:"type:varchar(20)" json:"actor_role"`
	Action     string    `gorm:"index;not null" json:"action"`
	EntityType string    `gorm:"index:idx_audit_entity;not null" json:"entity_type"`
	EntityID   uint      `gorm:"index:idx_audit_entity" json:"entity_id"`
	Before     string    `gorm:"type:text" json:"before,omitempty"`
	After      string    `gorm:"type:text" json:"after,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
