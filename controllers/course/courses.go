package courseControllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/apperr"
	"github.com/junaidrashid-git/crm-admin-api/audit"
	"github.com/junaidrashid-git/crm-admin-api/auth"
	"github.com/junaidrashid-git/crm-admin-api/export"
	"github.com/junaidrashid-git/crm-admin-api/models"
)

var ErrCourseNotFound = apperr.NotFound("Course not found")

type CreateCourseInput struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Active      *bool           `json:"active"`
}

type UpdateCourseInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Active      *bool            `json:"active"`
}

// CourseWithCount is a course and its number of enrollments.
type CourseWithCount struct {
	models.Course
	EnrollmentCount int64 `json:"enrollment_count"`
}

func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid %s", name)
	}
	return uint(id), nil
}

func findCourse(db *gorm.DB, id uint) (*models.Course, error) {
	var course models.Course
	if err := db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

func coursesWithCounts(db *gorm.DB) ([]CourseWithCount, error) {
	var courses []models.Course
	if err := db.Order("name").Find(&courses).Error; err != nil {
		return nil, err
	}
	type countRow struct {
		CourseID uint
		N        int64
	}
	var rows []countRow
	if err := db.Model(&models.Enrollment{}).
		Select("course_id, COUNT(*) AS n").
		Group("course_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CourseID] = r.N
	}
	out := make([]CourseWithCount, 0, len(courses))
	for _, course := range courses {
		out = append(out, CourseWithCount{Course: course, EnrollmentCount: counts[course.ID]})
	}
	return out, nil
}

// -------- Handlers --------

func ListCourses(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		courses, err := coursesWithCounts(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, courses)
	}
}

// GetCourse returns the course with enrollments and enrolled customers.
func GetCourse(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c, "id")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var course models.Course
		if err := db.Preload("Enrollments.Customer").First(&course, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperr.Respond(c, ErrCourseNotFound)
				return
			}
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, course)
	}
}

func CreateCourse(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input CreateCourseInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		name := strings.TrimSpace(input.Name)
		if name == "" {
			apperr.Respond(c, apperr.Validation("Name is required"))
			return
		}
		if input.Price.IsNegative() {
			apperr.Respond(c, apperr.Validation("Price must not be negative"))
			return
		}

		course := models.Course{
			Name:        name,
			Description: input.Description,
			Price:       input.Price,
			Active:      input.Active == nil || *input.Active,
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&course).Error; err != nil {
				return fmt.Errorf("create course: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "course.create", EntityType: "course", EntityID: course.ID, After: course,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, course)
	}
}

func UpdateCourse(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := parseID(c, "id")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		var input UpdateCourseInput
		if err := c.ShouldBindJSON(&input); err != nil {
			apperr.Respond(c, apperr.Validation("Invalid request payload"))
			return
		}

		updates := make(map[string]interface{})
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				apperr.Respond(c, apperr.Validation("Name must not be empty"))
				return
			}
			updates["name"] = name
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.Price != nil {
			if input.Price.IsNegative() {
				apperr.Respond(c, apperr.Validation("Price must not be negative"))
				return
			}
			updates["price"] = *input.Price
		}
		if input.Active != nil {
			updates["active"] = *input.Active
		}

		var course *models.Course
		err = db.Transaction(func(tx *gorm.DB) error {
			before, err := findCourse(tx, id)
			if err != nil {
				return err
			}
			if len(updates) > 0 {
				if err := tx.Model(&models.Course{}).Where("id = ?", id).Updates(updates).Error; err != nil {
					return fmt.Errorf("update course: %w", err)
				}
			}
			if course, err = findCourse(tx, id); err != nil {
				return err
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "course.update", EntityType: "course", EntityID: id, Before: before, After: course,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, course)
	}
}

// DeleteCourse removes the course and its enrollments.
func DeleteCourse(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		id, err := parseID(c, "id")
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			course, err := findCourse(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Where("course_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
				return fmt.Errorf("delete enrollments: %w", err)
			}
			if err := tx.Delete(&models.Course{}, id).Error; err != nil {
				return fmt.Errorf("delete course: %w", err)
			}
			return audit.Record(tx, audit.Entry{
				Actor: p.Actor(), Action: "course.delete", EntityType: "course", EntityID: id, Before: course,
			})
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Course deleted successfully"})
	}
}

// GET /api/courses/export
func ExportCoursesCSV(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		courses, err := coursesWithCounts(db)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		rows := make([]export.CourseRow, 0, len(courses))
		for _, course := range courses {
			rows = append(rows, export.CourseRow{Course: course.Course, Enrollments: course.EnrollmentCount})
		}
		var buf bytes.Buffer
		if err := export.Courses(&buf, rows); err != nil {
			apperr.Respond(c, apperr.Internal("Failed to write CSV", err))
			return
		}
		c.Header("Content-Disposition", "attachment; filename=courses.csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}
