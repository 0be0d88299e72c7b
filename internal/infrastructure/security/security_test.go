package security

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret: "access_secret_key_must_be_32_bytes_long",
		Issuer:       "absences-app",
		Audience:     "absence-scheduler",
	}
}

func TestJWTService(t *testing.T) {
	svc := NewJWTService(testJWTConfig())
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "crud-app", RoleService, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "crud-app", claims.Principal)
	assert.Equal(t, RoleService, claims.Role)

	_, err = svc.ValidateToken(ctx, "invalid.token.string")
	assert.Error(t, err)
}

func TestJWTService_RejectsForeignTokens(t *testing.T) {
	svc := NewJWTService(testJWTConfig())
	ctx := context.Background()

	other := testJWTConfig()
	other.AccessSecret = "another_secret_key_that_is_32_bytes_x"
	token, err := NewJWTService(other).IssueToken(ctx, "crud-app", RoleService, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, token)
	assert.Error(t, err)

	wrongAudience := testJWTConfig()
	wrongAudience.Audience = "someone-else"
	token, err = NewJWTService(wrongAudience).IssueToken(ctx, "crud-app", RoleService, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorContains(t, err, "audience")

	token, err = svc.IssueToken(ctx, "crud-app", "student", time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, token)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeForbidden, appErr.Code)
}

func TestJWT_ExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	svc := NewJWTService(cfg)
	claims := &Claims{
		Principal: "crud-app",
		Role:      RoleService,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, _ := tokenObj.SignedString([]byte(cfg.AccessSecret))

	_, err := svc.ValidateToken(context.Background(), tokenStr)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeExpiredToken, appErr.Code)
}

func TestContextHelpers(t *testing.T) {
	ctx := ContextWithRole(ContextWithPrincipal(context.Background(), "ops"), RoleAdmin)

	p, ok := PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ops", p)

	role, ok := RoleFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
