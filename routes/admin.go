package routes

import (
	"github.com/gin-gonic/gin"

	adminController "github.com/junaidrashid-git/crm-admin-api/controllers/admin"
	emailControllers "github.com/junaidrashid-git/crm-admin-api/controllers/email"
	paymentControllers "github.com/junaidrashid-git/crm-admin-api/controllers/payment"
	settingsControllers "github.com/junaidrashid-git/crm-admin-api/controllers/settings"
	"github.com/junaidrashid-git/crm-admin-api/middleware"
	"github.com/junaidrashid-git/crm-admin-api/permissions"
)

// SetupAdminRoutes registers staff management, audit, email, payment and
// system settings endpoints under /api.
func SetupAdminRoutes(api *gin.RouterGroup, d Deps) {
	db := d.DB
	can := middleware.Require

	// ─────────── Admin & Approval Workflow ───────────
	admins := api.Group("/admins", can(permissions.AdminsManage))
	{
		admins.GET("", adminController.GetAllAdmins(db))
		admins.POST("", adminController.CreateAdmin(db))
		admins.GET("/pending", adminController.ListPendingAdmins(db))
		admins.POST("/:id/approve", adminController.ApproveAdmin(db))
		admins.POST("/:id/reject", adminController.RejectAdmin(db))
		admins.PUT("/:id/role", adminController.ChangeRole(db))
		admins.DELETE("/:id", adminController.DeleteAdmin(db))
	}
	api.GET("/audit-logs", can(permissions.AuditRead), adminController.ListAuditLogs(db))

	// ─────────── Email ───────────
	email := api.Group("/email")
	{
		email.GET("/templates", can(permissions.EmailTemplates), emailControllers.ListTemplates(db))
		email.GET("/templates/:id", can(permissions.EmailTemplates), emailControllers.GetTemplate(db))
		email.POST("/templates", can(permissions.EmailTemplates), emailControllers.CreateTemplate(db))
		email.PUT("/templates/:id", can(permissions.EmailTemplates), emailControllers.UpdateTemplate(db))
		email.DELETE("/templates/:id", can(permissions.EmailTemplates), emailControllers.DeleteTemplate(db))
		email.GET("/logs", can(permissions.EmailLogsRead), emailControllers.ListLogs(db))
		email.POST("/campaigns", can(permissions.EmailSend), emailControllers.SendCampaign(db, d.Mailer))
		email.POST("/test", can(permissions.EmailSend), emailControllers.SendTestEmail(db, d.Mailer))
	}

	// ─────────── Payment Settings ───────────
	pay := api.Group("/payment-settings")
	{
		pay.GET("", can(permissions.PaymentRead), paymentControllers.GetSettings(db))
		pay.PUT("", can(permissions.PaymentWrite), paymentControllers.UpdateSettings(db))
		pay.POST("/test", can(permissions.PaymentWrite), paymentControllers.TestConnection(db, d.Telr))
		pay.POST("/qr", can(permissions.PaymentWrite),
			paymentControllers.UploadBankTransferQR(db, d.Config.UploadDir, d.Config.PublicBaseURL))
		pay.DELETE("/qr", can(permissions.PaymentWrite),
			paymentControllers.DeleteBankTransferQR(db, d.Config.UploadDir, d.Config.PublicBaseURL))
	}

	// ─────────── System Settings ───────────
	api.GET("/settings", can(permissions.SettingsRead), settingsControllers.GetSettings(db))
	api.PUT("/settings", can(permissions.SettingsWrite), settingsControllers.UpsertSettings(db))
}
