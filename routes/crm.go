package routes

import (
	"github.com/gin-gonic/gin"

	courseControllers "github.com/junaidrashid-git/crm-admin-api/controllers/course"
	customerControllers "github.com/junaidrashid-git/crm-admin-api/controllers/customer"
	tagControllers "github.com/junaidrashid-git/crm-admin-api/controllers/tag"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

// SetupCRMRoutes registers customers, tags, courses and enrollments under /api.
func SetupCRMRoutes(api *gin.RouterGroup, d Deps) {
	db := d.DB
	can := middleware.Require

	// ─────────── Customers ───────────
	customers := api.Group("/customers")
	{
		customers.GET("", can(permissions.CustomersRead), customerControllers.ListCustomers(db))
		customers.GET("/export", can(permissions.CustomersExport), customerControllers.ExportCustomersCSV(db))
		customers.GET("/:id", can(permissions.CustomersRead), customerControllers.GetCustomer(db))
		customers.POST("", can(permissions.CustomersWrite), customerControllers.CreateCustomer(db))
		customers.PUT("/:id", can(permissions.CustomersWrite), customerControllers.UpdateCustomer(db))
		customers.DELETE("/:id", can(permissions.CustomersDelete), customerControllers.DeleteCustomer(db))
		customers.PUT("/:id/tags", can(permissions.CustomersWrite), customerControllers.SetCustomerTags(db))
		customers.POST("/:id/tags/:tagId", can(permissions.CustomersWrite), customerControllers.AddCustomerTag(db))
		customers.DELETE("/:id/tags/:tagId", can(permissions.CustomersWrite), customerControllers.RemoveCustomerTag(db))
	}

	// ─────────── Tags ───────────
	tags := api.Group("/tags")
	{
		tags.GET("", can(permissions.TagsRead), tagControllers.ListTags(db))
		tags.GET("/export", can(permissions.TagsRead), tagControllers.ExportTagsCSV(db))
		tags.POST("", can(permissions.TagsWrite), tagControllers.CreateTag(db))
		tags.PUT("/:id", can(permissions.TagsWrite), tagControllers.UpdateTag(db))
		tags.DELETE("/:id", can(permissions.TagsWrite), tagControllers.DeleteTag(db))
	}

	// ─────────── Courses & Enrollments ───────────
	courses := api.Group("/courses")
	{
		courses.GET("", can(permissions.CoursesRead), courseControllers.ListCourses(db))
		courses.GET("/export", can(permissions.CoursesRead), courseControllers.ExportCoursesCSV(db))
		courses.GET("/:id", can(permissions.CoursesRead), courseControllers.GetCourse(db))
		courses.POST("", can(permissions.CoursesWrite), courseControllers.CreateCourse(db))
		courses.PUT("/:id", can(permissions.CoursesWrite), courseControllers.UpdateCourse(db))
		courses.DELETE("/:id", can(permissions.CoursesWrite), courseControllers.DeleteCourse(db))

		courses.GET("/:id/enrollments", can(permissions.CoursesRead), courseControllers.ListEnrollments(db))
		courses.POST("/:id/enrollments", can(permissions.EnrollmentsWrite), courseControllers.Enroll(db))
		courses.PUT("/:id/enrollments/:enrollmentId", can(permissions.EnrollmentsWrite), courseControllers.UpdateEnrollment(db))
		courses.DELETE("/:id/enrollments/:enrollmentId", can(permissions.EnrollmentsWrite), courseControllers.DeleteEnrollment(db))
	}
}
