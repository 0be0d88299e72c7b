package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/security"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/utils"
)

type AuthMiddleware struct {
	jwtService *security.JWTService
	metrics    *observability.Metrics
	audit      *observability.AuditLogger
}

func NewAuthMiddleware(jwtService *security.JWTService, metrics *observability.Metrics, audit *observability.AuditLogger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		metrics:    metrics,
		audit:      audit,
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, reason string, err error) {
	if m.metrics != nil {
		m.metrics.AuthenticationFailures.WithLabelValues(reason).Inc()
	}
	if m.audit != nil {
		m.audit.LogSecurityEvent(c.Request.Context(), observability.SecurityEvent{
			Type:      "authentication",
			Action:    c.Request.Method,
			Resource:  c.FullPath(),
			Success:   false,
			IPAddress: c.ClientIP(),
		})
	}
	utils.Error(c, err)
	c.Abort()
}

func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, "missing_header", errors.ErrUnauthorized)
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			m.reject(c, "bad_header", errors.Wrap(errors.ErrUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format"))
			return
		}
		tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if tokenString == "" {
			m.reject(c, "missing_token", errors.Wrap(errors.ErrUnauthorized, errors.ErrCodeUnauthorized, "Missing token"))
			return
		}

		claims, err := m.jwtService.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			m.reject(c, "invalid_token", err)
			return
		}

		ctx := security.ContextWithPrincipal(c.Request.Context(), claims.Principal)
		ctx = security.ContextWithRole(ctx, claims.Role)
		ctx = context.WithValue(ctx, observability.PrincipalKey, claims.Principal)
		c.Request = c.Request.WithContext(ctx)

		c.Set(string(security.PrincipalKey), claims.Principal)
		c.Set(string(security.RoleKey), claims.Role)

		c.Next()
	}
}

func (m *AuthMiddleware) Authorize(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetCurrentRole(c)
		if err != nil || !slices.Contains(allowedRoles, role) {
			utils.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetCurrentPrincipal(c *gin.Context) (string, error) {
	v, exists := c.Get(string(security.PrincipalKey))
	if !exists {
		return "", errors.ErrUnauthorized
	}
	principal, ok := v.(string)
	if !ok {
		return "", errors.Wrap(errors.ErrUnauthorized, errors.ErrCodeInternal, "Invalid principal type in context")
	}
	return principal, nil
}

func GetCurrentRole(c *gin.Context) (string, error) {
	v, exists := c.Get(string(security.RoleKey))
	if !exists {
		return "", errors.ErrForbidden
	}
	role, ok := v.(string)
	if !ok {
		return "", errors.Wrap(errors.ErrForbidden, errors.ErrCodeInternal, "Invalid role type in context")
	}
	return role, nil
}
