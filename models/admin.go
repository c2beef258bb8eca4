package models

import (
	"time"

	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type Admin struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Email        string           `gorm:"uniqueIndex;not null" json:"email"`
	Name         string           `json:"name"`
	Picture      string           `json:"picture"`
	PasswordHash string           `json:"-"`
	Role         permissions.Role `gorm:"type:varchar(20);not null" json:"role"`
	Provider     string           `gorm:"type:varchar(20);not null" json:"provider"`
	Approved     bool             `json:"approved"`
	LastLoginAt  *time.Time       `json:"last_login_at"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
