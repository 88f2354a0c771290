// internal/pkg/response/validation.go
package response

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindError reports a request binding failure with a readable message for
// the first invalid field.
func BindError(c *gin.Context, err error) {
	ValidationError(c, "invalid request", errors.New(ValidationMessage(err)))
}

// ValidationMessage turns validator errors into one sentence. Field names are
// whatever the validator was told to report (json tags, see validation.Register).
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Request body is malformed"
	}
	fe := verrs[0]
	field := strings.ReplaceAll(fe.Field(), "_", " ")

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "username":
		return fmt.Sprintf("%s may only contain lowercase letters, numbers and underscores", field)
	case "special":
		return fmt.Sprintf("%s must contain at least one special character (@$!%%*?&)", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
