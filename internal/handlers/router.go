package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
)

// HealthCheck is one dependency probed by /health
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HandlerManager struct {
	sessionHandler     *SessionHandler
	certificateHandler *CertificateHandler
	exportHandler      *ExportHandler
	grantHandler       *GrantHandler
	userHandler        *UserHandler
	authMiddleware     *CasdoorAuthMiddleware
	healthChecks       []HealthCheck
	logger             utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	live LiveBridge,
	authMiddleware *CasdoorAuthMiddleware,
	userRepo repositories.UserRepository,
	logger utils.Logger,
	healthChecks ...HealthCheck,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(
			serviceManager.Admission(),
			serviceManager.Submission(),
			serviceManager.Violation(),
			live,
			logger,
		),
		certificateHandler: NewCertificateHandler(serviceManager.Certificate(), logger),
		exportHandler:      NewExportHandler(serviceManager.Export(), logger),
		grantHandler:       NewGrantHandler(serviceManager.Grant(), logger),
		userHandler:        NewUserHandler(userRepo, logger),
		authMiddleware:     authMiddleware,
		healthChecks:       healthChecks,
		logger:             logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	authorOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		assessments := v1.Group("/assessments")
		{
			// Test-taker flow
			assessments.POST("/:id/sessions", hm.sessionHandler.Admit)
			assessments.GET("/:id/quota", hm.sessionHandler.Quota)
			assessments.POST("/:id/submit", hm.sessionHandler.Submit)
			assessments.POST("/:id/violations", hm.sessionHandler.ReportViolation)
			assessments.GET("/:id/results/me", hm.sessionHandler.ListMyResults)
			assessments.GET("/:id/live", hm.sessionHandler.Live)

			// Exports - Teachers and Admins only
			assessments.GET("/:id/results/export", authorOnly, hm.exportHandler.ExportResults)
			assessments.GET("/:id/violations/export", authorOnly, hm.exportHandler.ExportViolations)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:id/violations", hm.sessionHandler.ListSessionViolations)
		}

		results := v1.Group("/results")
		{
			results.GET("/:id", hm.sessionHandler.GetResult)
			results.GET("/:id/certificate", hm.certificateHandler.GetCertificate)
			results.POST("/:id/certificate", hm.certificateHandler.RegenerateCertificate)
		}

		// Manual grants - Admins only
		v1.POST("/grants", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.grantHandler.GrantAccess)

		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.Me)
			users.GET("/:id", authorOnly, hm.userHandler.GetUser)
		}
	}

	router.GET("/health", hm.health)
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(gin.H, len(hm.healthChecks))
	for _, hc := range hm.healthChecks {
		if err := hc.Check(ctx); err != nil {
			hm.logger.Warn("Health check failed", "dependency", hc.Name, "error", err)
			checks[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[hc.Name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "skill-assessment-service",
		"checks":  checks,
	})
}
