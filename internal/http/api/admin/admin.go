// Package admin wires the dashboard API routes.
package admin

import (
	"github.com/ecxia/fleet-safety/internal/config"
	apphttp "github.com/ecxia/fleet-safety/internal/http"
	"github.com/ecxia/fleet-safety/internal/http/api/admin/handlers"
	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterRoutes mounts the admin API under the given group.
func RegisterRoutes(r *gin.RouterGroup, db *gorm.DB, cfg config.Config, linkSvc *linking.Service) {
	authHandler := handlers.NewAuthHandler(db, cfg.JWT)
	r.POST("/auth/login", authHandler.Login)
	r.POST("/auth/login/prepare", authHandler.LoginPrepare)
	r.POST("/auth/login/totp", authHandler.LoginTOTP)

	authed := r.Group("", apphttp.AdminAuthMiddleware(cfg.JWT.Secret))

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	driversHandler := handlers.NewDriversHandler(db, linkSvc)
	authed.GET("/drivers", driversHandler.List)
	authed.POST("/drivers", driversHandler.Create)
	authed.PUT("/drivers/:id", driversHandler.Update)
	authed.POST("/drivers/:id/registration-token", driversHandler.IssueToken)
	authed.POST("/drivers/:id/unlink", driversHandler.Unlink)

	adminsHandler := handlers.NewAdminsHandler(db, linkSvc)
	authed.GET("/admins", adminsHandler.List)
	authed.POST("/admins", apphttp.RequireRole(models.RoleOrgAdmin), adminsHandler.Create)
	authed.POST("/admins/:id/line-token", adminsHandler.IssueLineToken)
	authed.POST("/admins/:id/line-unlink", adminsHandler.UnlinkLine)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings/notifications", settingsHandler.GetNotificationSettings)
	authed.PUT("/settings/notifications", settingsHandler.UpdateNotificationSettings)

	emergenciesHandler := handlers.NewEmergenciesHandler(db)
	authed.GET("/emergencies", emergenciesHandler.List)
}
