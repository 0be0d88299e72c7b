package security

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

const (
	// RoleService is held by the course/exam application when it posts session events.
	RoleService = "service"
	// RoleAdmin is held by operators triggering reconciliations by hand.
	RoleAdmin = "admin"
)

// JWTService verifies the bearer tokens minted by the course/exam application.
// Both sides share the HMAC secret.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
}

type Claims struct {
	Principal string `json:"principal"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTService(cfg *config.JWTConfig) *JWTService {
	return &JWTService{
		secret:   []byte(cfg.AccessSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}
}

// IssueToken signs a token for principal. The course/exam application does the
// same on its side; this is used by tooling and tests.
func (j *JWTService) IssueToken(ctx context.Context, principal, role string, ttl time.Duration) (string, error) {
	jti, _ := uuid.NewRandom()
	now := time.Now()
	claims := &Claims{
		Principal: principal,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti.String(),
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New(errors.ErrCodeExpiredToken, "Token expired")
		}
		return nil, errors.New(errors.ErrCodeInvalidToken, "Authentication failed")
	}

	if !token.Valid {
		return nil, errors.New(errors.ErrCodeInvalidToken, "Authentication failed")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidToken, "Invalid token claims")
	}

	if claims.Issuer != j.issuer {
		return nil, errors.New(errors.ErrCodeInvalidToken, "Invalid token issuer")
	}

	if !slices.Contains(claims.Audience, j.audience) {
		return nil, errors.New(errors.ErrCodeInvalidToken, "Invalid token audience")
	}

	if claims.Role != RoleService && claims.Role != RoleAdmin {
		return nil, errors.New(errors.ErrCodeForbidden, "Unknown role")
	}

	return claims, nil
}
