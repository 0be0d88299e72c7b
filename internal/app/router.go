package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/middleware"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/modules/absences"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/modules/health"
)

const maxEventBodyBytes = 64 << 10

func SetupRouter(container *Container) *gin.Engine {
	if container.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.PanicRecoveryMiddleware(container.Logger))
	if len(container.Config.Server.TrustedProxies) > 0 {
		_ = router.SetTrustedProxies(container.Config.Server.TrustedProxies)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(container.Logger))
	router.Use(middleware.TimeoutMiddleware(durationOr(container.Config.Server.WriteTimeout, 30*time.Second)))
	router.Use(middleware.NewCORSMiddleware(container.Config.CORS))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.BodyLimitMiddleware(maxEventBodyBytes))
	router.Use(middleware.ErrorHandlingMiddleware(container.Logger, container.Metrics))

	if container.Config.Metrics.Enabled {
		router.Use(middleware.MetricsMiddleware(container.Metrics))
	}
	health.RegisterRoutes(router, container.HealthHandler)

	absences.RegisterRoutes(router, container.AbsenceHandler, container.AuthMiddleware, container.GetRateLimiter())

	if container.Config.Metrics.Enabled {
		router.GET("/api/v1/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}
