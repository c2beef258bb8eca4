package models

import "time"

type EmailTemplate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Subject   string    `gorm:"not null" json:"subject"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EmailStatus string

const (
	EmailSent   EmailStatus = "SENT"
	EmailFailed EmailStatus = "FAILED"
)

// EmailLog records one delivery attempt.
type EmailLog struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	TemplateID *uint       `gorm:"index" json:"template_id"`
	CustomerID *uint       `gorm:"index" json:"customer_id"`
	ToAddress  string      `gorm:"not null" json:"to"`
	Subject    string      `json:"subject"`
	Status     EmailStatus `gorm:"type:varchar(10);not null" json:"status"`
	Error      string      `json:"error,omitempty"`
	SentAt     time.Time   `gorm:"index" json:"sent_at"`
}
