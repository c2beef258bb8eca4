package courseControllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

var (
	ErrEnrollmentNotFound = apperr.NotFound("Enrollment not found")
	ErrAlreadyEnrolled    = apperr.Conflict("Customer is already enrolled in this course")
)

type EnrollInput struct {
	CustomerID uint   `json:"customer_id" binding:"required"`
	Status     string `json:"status"` // defaults to ACTIVE
}

type UpdateEnrollmentInput struct {
	Status string `json:"status" binding:"required"`
}

func parseEnrollmentStatus(s string) (models.EnrollmentStatus, error) {
	if strings.TrimSpace(s) == "" {
		return models.EnrollmentActive, nil
	}
	status := models.EnrollmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", apperr.Validation("Invalid enrollment status %q", s)
	}
	return status, nil
}

func findEnrollment(db *gorm.DB, courseID, id uint) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := db.Preload("Customer").Where("course_id = ?", courseID).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &e, nil
}

// GET /api/courses/:id/enrollments
func ListEnrollments(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, err := parseID(c, "id")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if _, err := findCourse(db, courseID); err != nil {
			apperr.Respond(c, err)
			return
		}
		q := db.Preload("Customer").Where("course_id = ?", courseID)
		if v := c.Query("status"); v != "" {
			status, err := parseEnrollmentStatus(v)
			if err != nil {
				apperr.Respond(c, err)
				return
			}
			q = q.Where("status = ?", status)
		}
		var enrollments []models.Enrollment
		if err := q.Order("enrolled_at desc, id desc").Find(&enrollments).Error; err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, enrollments)
	}
}

// POST /api/courses/:id/enrollments
func Enroll(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		courseID, err := parseID(c, "id")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input EnrollInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("customer_id is required"))
			return
		}
		status, err := parseEnrollmentStatus(input.Status)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var enrollment *models.Enrollment
		err = db.Transaction(func(tx *gorm.DB) error {
			if _, err := findCourse(tx, courseID); err != nil {
				return err
			}
			var customers int64
			if err := tx.Model(&models.Customer{}).Where("id = ?", input.CustomerID).Count(&customers).Error; err != nil {
				return err
			}
			if customers == 0 {
				return apperr.NotFound("Customer not found")
			}
			var existing int64
			if err := tx.Model(&models.Enrollment{}).
				Where("course_id = ? AND customer_id = ?", courseID, input.CustomerID).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return ErrAlreadyEnrolled
			}

			now := time.Now()
			e := models.Enrollment{CustomerID: input.CustomerID, CourseID: courseID, Status: status, EnrolledAt: now}
			if status == models.EnrollmentCompleted {
				e.CompletedAt = &now
			}
			if err := tx.Create(&e).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyEnrolled
				}
				return fmt.Errorf("create enrollment: %w", err)
			}
			var err error
			if enrollment, err = findEnrollment(tx, courseID, e.ID); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "enrollment.create", EntityType: "enrollment", EntityID: e.ID, After: e,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, enrollment)
	}
}

// PUT /api/courses/:id/enrollments/:enrollmentId
func UpdateEnrollment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		courseID, err := parseID(c, "id")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := parseID(c, "enrollmentId")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input UpdateEnrollmentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Status is required"))
			return
		}
		status, err := parseEnrollmentStatus(input.Status)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		var enrollment *models.Enrollment
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findEnrollment(tx, courseID, id)
			if err != nil {
				return err
			}
			updates := map[string]interface{}{"status": status, "completed_at": nil}
			if status == models.EnrollmentCompleted {
				completed := time.Now()
				if before.CompletedAt != nil {
					completed = *before.CompletedAt
				}
				updates["completed_at"] = completed
			}
			if err := tx.Model(&models.Enrollment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("update enrollment: %w", err)
			}
			if enrollment, err = findEnrollment(tx, courseID, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "enrollment.update", EntityType: "enrollment", EntityID: id,
				Before: before, After: enrollment,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, enrollment)
	}
}

// DELETE /api/courses/:id/enrollments/:enrollmentId
func DeleteEnrollment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		courseID, err := parseID(c, "id")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := parseID(c, "enrollmentId")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			e, err := findEnrollment(tx, courseID, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(&models.Enrollment{}, id).Error; err != nil {
				return fmt.Errorf("delete enrollment: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "enrollment.delete", EntityType: "enrollment", EntityID: id, Before: e,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Enrollment deleted successfully"})
	}
}
