// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"segmentbook-service/internal/pkg/jwt"
	"segmentbook-service/internal/pkg/response"
)

// Context keys set by Auth.
const (
	ContextUserID    = "user_id"
	ContextJTI       = "jti"
	ContextSessionID = "session_id"
	ContextClaims    = "claims"
)

// TokenValidator checks an access token against its live session.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Auth rejects requests without a valid access token.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.FromError(c, "invalid or expired token", err)
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present and never aborts.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := ExtractToken(c); token != "" {
			if claims, err := m.validator.ValidateToken(c.Request.Context(), token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextJTI, claims.ID)
	c.Set(ContextSessionID, claims.SessionID)
	c.Set(ContextClaims, claims)
}

// ExtractToken reads a Bearer token, falling back to the token query
// parameter used by websocket clients.
func ExtractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
