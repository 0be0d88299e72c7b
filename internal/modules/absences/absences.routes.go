package absences

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/middleware"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/security"
)

func RegisterRoutes(router *gin.Engine, handler *Handler, authMiddleware *middleware.AuthMiddleware, limiter security.RateLimiter) {
	api := router.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())

	// Hook called by the course/exam application
	events := api.Group("/session-events")
	events.Use(authMiddleware.Authorize(security.RoleService, security.RoleAdmin))
	{
		events.POST("", handler.ReceiveSessionEvent)
	}

	// Operator routes
	operator := api.Group("")
	operator.Use(authMiddleware.Authorize(security.RoleAdmin))
	{
		manual := operator.Group("/reconciliations")
		if limiter != nil {
			manual.Use(security.RouteRateLimitMiddleware(limiter, 30, time.Minute))
		}
		manual.POST("/:kind/:id", handler.Reconcile)

		operator.GET("/reconciliation-tasks", handler.ListTasks)
		operator.GET("/reconciliation-tasks/:uuid", handler.GetTask)
	}
}
