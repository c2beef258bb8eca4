package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Active      bool            `json:"active"`
	Enrollments []Enrollment    `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentCompleted, EnrollmentCancelled:
		return true
	}
	return false
}

// Enrollment is unique per (customer, course).
type Enrollment struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CustomerID  uint             `gorm:"uniqueIndex:idx_enrollment_customer_course;not null" json:"customer_id"`
	Customer    *Customer        `json:"customer,omitempty"`
	CourseID    uint             `gorm:"uniqueIndex:idx_enrollment_customer_course;not null" json:"course_id"`
	Course      *Course          `json:"course,omitempty"`
	Status      EnrollmentStatus `gorm:"type:varchar(20);not null" json:"status"`
	EnrolledAt  time.Time        `json:"enrolled_at"`
	CompletedAt *time.Time       `json:"completed_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
