package courseControllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/auth"
	courseControllers "github.com/junaidrashid-git/crm-admin-api/controllers/course"
	"github.com/junaidrashid-git/crm-admin-api/database/dbtest"
	"github.com/junaidrashid-git/crm-admin-api/models"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func router(db *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, auth.Principal{Kind: auth.KindAdmin, ID: 1, Role: permissions.RoleAdmin})
		c.Next()
	})
	r.GET("/courses", courseControllers.ListCourses(db))
	r.GET("/courses/export", courseControllers.ExportCoursesCSV(db))
	r.GET("/courses/:id", courseControllers.GetCourse(db))
	r.POST("/courses", courseControllers.CreateCourse(db))
	r.PUT("/courses/:id", courseControllers.UpdateCourse(db))
	r.DELETE("/courses/:id", courseControllers.DeleteCourse(db))
	r.GET("/courses/:id/enrollments", courseControllers.ListEnrollments(db))
	r.POST("/courses/:id/enrollments", courseControllers.Enroll(db))
	r.PUT("/courses/:id/enrollments/:enrollmentId", courseControllers.UpdateEnrollment(db))
	r.DELETE("/courses/:id/enrollments/:enrollmentId", courseControllers.DeleteEnrollment(db))
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCourseCRUD(t *testing.T) {
	db := dbtest.Open(t)
	r := router(db)

	w := do(r, http.MethodPost, "/courses", gin.H{"name": "Go Basics", "price": "149.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var course models.Course
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &course))
	assert.True(t, course.Active)

	w = do(r, http.MethodPost, "/courses", gin.H{"name": "Free", "price": "-5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, fmt.Sprintf("/courses/%d", course.ID), gin.H{"active": false, "price": 99})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &course))
	assert.False(t, course.Active)
	assert.True(t, decimal.NewFromInt(99).Equal(course.Price))
	assert.Equal(t, "Go Basics", course.Name)

	w = do(r, http.MethodGet, "/courses/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollments(t *testing.T) {
	db := dbtest.Open(t)
	r := router(db)
	course := models.Course{Name: "Go Basics", Price: decimal.NewFromInt(100), Active: true}
	require.NoError(t, db.Create(&course).Error)
	alice := models.Customer{Email: "alice@example.com", Name: "Alice"}
	require.NoError(t, db.Create(&alice).Error)

	base := fmt.Sprintf("/courses/%d/enrollments", course.ID)
	w := do(r, http.MethodPost, base, gin.H{"customer_id": alice.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e models.Enrollment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, models.EnrollmentActive, e.Status)
	require.NotNil(t, e.Customer)
	assert.Equal(t, "Alice", e.Customer.Name)

	w = do(r, http.MethodPost, base, gin.H{"customer_id": alice.ID})
	assert.Equal(t, http.StatusConflict, w.Code, "a customer enrolls in a course once")
	w = do(r, http.MethodPost, base, gin.H{"customer_id": 999})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodPost, base, gin.H{"customer_id": alice.ID, "status": "paused"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, fmt.Sprintf("%s/%d", base, e.ID), gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, models.EnrollmentCompleted, e.Status)
	assert.NotNil(t, e.CompletedAt)

	w = do(r, http.MethodPut, fmt.Sprintf("%s/%d", base, e.ID), gin.H{"status": "ACTIVE"})
	require.Equal(t, http.StatusOK, w.Code)
	var reopened models.Enrollment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reopened))
	assert.Nil(t, reopened.CompletedAt)

	w = do(r, http.MethodGet, base+"?status=active", nil)
	var list []models.Enrollment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = do(r, http.MethodGet, "/courses", nil)
	var courses []courseControllers.CourseWithCount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &courses))
	require.Len(t, courses, 1)
	assert.EqualValues(t, 1, courses[0].EnrollmentCount)

	w = do(r, http.MethodGet, "/courses/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], fmt.Sprintf(`"%d","Go Basics","100.00","true","1","`, course.ID)), lines[1])

	// Deleting the course takes its enrollments with it
	w = do(r, http.MethodDelete, fmt.Sprintf("/courses/%d", course.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var remaining int64
	require.NoError(t, db.Model(&models.Enrollment{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestDeleteEnrollmentWrongCourse(t *testing.T) {
	db := dbtest.Open(t)
	r := router(db)
	a := models.Course{Name: "A", Active: true}
	b := models.Course{Name: "B", Active: true}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)
	alice := models.Customer{Email: "alice@example.com", Name: "Alice"}
	require.NoError(t, db.Create(&alice).Error)
	e := models.Enrollment{CustomerID: alice.ID, CourseID: a.ID, Status: models.EnrollmentActive}
	require.NoError(t, db.Create(&e).Error)

	w := do(r, http.MethodDelete, fmt.Sprintf("/courses/%d/enrollments/%d", b.ID, e.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, fmt.Sprintf("/courses/%d/enrollments/%d", a.ID, e.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
