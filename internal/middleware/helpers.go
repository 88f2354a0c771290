// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	xerrors "segmentbook-service/internal/pkg/errors"
	"segmentbook-service/internal/pkg/jwt"
	"segmentbook-service/internal/pkg/response"
)

// GetUserID returns the authenticated user's id.
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	return id, id != ""
}

// MustGetUserID panics when called outside Auth; recovery turns that into a 500.
func MustGetUserID(c *gin.Context) string {
	id, ok := GetUserID(c)
	if !ok {
		panic("user_id not found in context")
	}
	return id
}

func GetJTI(c *gin.Context) (string, bool) {
	jti := c.GetString(ContextJTI)
	return jti, jti != ""
}

func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetUserID(c)
	return ok
}

// ParamUUID returns path parameter name when it is a UUID. Otherwise it
// writes a 400 and returns false.
func ParamUUID(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		response.ValidationError(c, "invalid "+name, xerrors.Newf(xerrors.ErrInvalidInput, "%s must be a valid id", name))
		return "", false
	}
	return id.String(), true
}
