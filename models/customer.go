package models

import "time"

type Customer struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"uniqueIndex;not null" json:"email"`
	Name         string       `gorm:"not null" json:"name"`
	Phone        string       `json:"phone"`
	Address      Address      `gorm:"embedded" json:"address"` // Embeds address fields directly
	Note         string       `json:"note"`
	PasswordHash string       `json:"-"`
	EmailOptOut  bool         `json:"email_opt_out"`
	Tags         []Tag        `gorm:"many2many:customer_tags" json:"tags,omitempty"`
	Enrollments  []Enrollment `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
	Orders       []Order      `gorm:"foreignKey:CustomerID" json:"orders,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Address is embedded in Customer and, with a prefix, in Order.
type Address struct {
	Country    string `json:"country"`
	State      string `json:"state"`
	City       string `json:"city"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
}

// CustomerTag is the join row behind Customer.Tags.
type CustomerTag struct {
	CustomerID uint `gorm:"primaryKey"`
	TagID      uint `gorm:"primaryKey"`
	CreatedAt  time.Time
}

type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Color     string    `gorm:"type:varchar(20)" json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
