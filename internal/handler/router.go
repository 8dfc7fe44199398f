package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruta-norte/fleet-compliance-api/internal/middleware"
	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	"github.com/ruta-norte/fleet-compliance-api/internal/repository"
	"github.com/ruta-norte/fleet-compliance-api/internal/service"
)

// RouterDeps bundles everything route registration needs.
type RouterDeps struct {
	Auth        *AuthHandler
	Inspections *InspectionHandler
	Orders      *DirectOrderHandler
	History     *HistoryHandler
	Dispatch    *DispatchHandler
	Settings    *SettingsHandler

	AuthService *service.AuthService
	Metrics     *service.MetricsService
	Users       *repository.UserRepository
}

// RegisterRoutes attaches all API routes under /api/v1.
func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Metrics(deps.Metrics))

	// Signed-token downloads carry their own credential in the URL.
	v1.GET("/inspections/images/:token",
		middleware.Audit(deps.Users, models.AuditActionImageView, "inspection_image"),
		deps.Inspections.DownloadImage)
	v1.GET("/history/export/:token",
		middleware.Audit(deps.Users, models.AuditActionExportDownload, "history_export"),
		deps.History.DownloadExport)

	v1.POST("/auth/login", deps.Auth.Login)
	v1.POST("/auth/refresh", deps.Auth.Refresh)

	authed := v1.Group("")
	authed.Use(middleware.JWT(deps.AuthService), middleware.Tenant())

	authed.POST("/auth/logout", deps.Auth.Logout)

	authed.GET("/check-needed", deps.Inspections.CheckNeeded)

	staff := []models.UserRole{models.RoleAdmin, models.RoleSupervisor, models.RoleWorkshop}
	reviewers := []models.UserRole{models.RoleAdmin, models.RoleSupervisor}

	authed.POST("/inspections",
		middleware.RequireRoles(models.RoleAdmin, models.RoleWorker),
		deps.Inspections.Create)
	authed.POST("/inspections/:id/images",
		middleware.RequireRoles(models.RoleAdmin, models.RoleWorker),
		deps.Inspections.UploadImage)
	authed.GET("/inspections", middleware.RequireRoles(staff...), deps.Inspections.List)
	authed.GET("/inspections/pending", middleware.RequireRoles(reviewers...), deps.Inspections.Pending)
	authed.GET("/inspections/:id", middleware.RequireRoles(staff...), deps.Inspections.Get)
	authed.POST("/inspections/:id/review", middleware.RequireRoles(reviewers...), deps.Inspections.MarkReviewed)

	authed.POST("/manual-requests", middleware.RequireRoles(reviewers...), deps.Dispatch.Dispatch)

	authed.GET("/settings/auto-inspection", deps.Settings.Get)
	authed.PUT("/settings/auto-inspection", middleware.RequireRoles(reviewers...), deps.Settings.Update)

	authed.POST("/direct-orders",
		middleware.RequireRoles(models.RoleAdmin, models.RoleWorkshop),
		deps.Orders.Create)
	authed.GET("/direct-orders", middleware.RequireRoles(staff...), deps.Orders.List)
	authed.GET("/direct-orders/:id", middleware.RequireRoles(staff...), deps.Orders.Get)
	authed.PATCH("/direct-orders/:id/review", middleware.RequireRoles(reviewers...), deps.Orders.MarkReviewed)

	authed.GET("/history", middleware.RequireRoles(staff...), deps.History.List)
	authed.POST("/history/export", middleware.RequireRoles(staff...), deps.History.CreateExport)
	authed.GET("/history/export/jobs/:id", middleware.RequireRoles(staff...), deps.History.ExportStatus)
}
