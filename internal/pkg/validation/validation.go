// internal/pkg/validation/validation.go
package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	specialChars    = "@$!%*?&"
)

// Register adds the custom binding tags used by request DTOs and
// makes validation errors name fields by their json keys.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		return name
	})
	if err := v.RegisterValidation("username", validUsername); err != nil {
		return err
	}
	return v.RegisterValidation("special", hasSpecial)
}

func validUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

func hasSpecial(fl validator.FieldLevel) bool {
	return strings.ContainsAny(fl.Field().String(), specialChars)
}
