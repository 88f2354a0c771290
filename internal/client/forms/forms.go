// internal/client/forms/forms.go
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	fullNamePattern = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	specialPattern  = regexp.MustCompile(`[@$!%*?&]`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// SignIn is the sign-in form.
type SignIn struct {
	Email    string `json:"email" label:"Email" validate:"required,email"`
	Password string `json:"password" label:"Password" validate:"required"`
}

// SignUp is the sign-up form.
type SignUp struct {
	FullName string `json:"fullName" label:"Full name" validate:"required,min=2,max=50,fullname"`
	Username string `json:"username" label:"Username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" label:"Email" validate:"required,email,max=255"`
	Password string `json:"password" label:"Password" validate:"required,min=8,max=72,special"`
	Country  string `json:"country" label:"Country" validate:"required"`
}

// NewBook is the form for listing a book.
type NewBook struct {
	Title       string `json:"title" label:"Title" validate:"notblank,max=200"`
	Author      string `json:"author" label:"Author" validate:"notblank,max=200"`
	Description string `json:"description" label:"Description" validate:"max=2000"`
	Condition   string `json:"condition" label:"Condition" validate:"required,oneof=like_new excellent good fair acceptable"`
	Language    string `json:"language" label:"Language" validate:"notblank,max=50"`
	CoverFile   string `json:"coverFile" label:"Cover image" validate:"omitempty,image"`
}

// EditBook is the form for changing a listed book.
type EditBook struct {
	Title       string `json:"title" label:"Title" validate:"notblank,max=200"`
	Author      string `json:"author" label:"Author" validate:"notblank,max=200"`
	Description string `json:"description" label:"Description" validate:"max=2000"`
}

// MarkDonated names who received a book.
type MarkDonated struct {
	RecipientUsername string `json:"recipientUsername" label:"Recipient username" validate:"required,username"`
}

// Message is the chat composer.
type Message struct {
	Content string `json:"content" label:"Message" validate:"notblank,max=2000"`
}

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, fe[f]))
	}
	return strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("fullname", matches(fullNamePattern))
	must("special", func(fl validator.FieldLevel) bool {
		return specialPattern.MatchString(fl.Field().String())
	})
	must("username", matches(usernamePattern))
	must("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	must("image", func(fl validator.FieldLevel) bool {
		ext := strings.ToLower(fl.Field().String())
		for _, ok := range []string{".png", ".jpg", ".jpeg", ".webp", ".gif"} {
			if strings.HasSuffix(ext, ok) {
				return true
			}
		}
		return false
	})
	return v
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate checks form and returns FieldErrors, or nil when the form is valid.
// Only the first failing rule of each field is reported.
func Validate(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	t := reflect.TypeOf(form)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(label(t, fe), fe)
	}
	return out
}

func label(t reflect.Type, fe validator.FieldError) string {
	if f, ok := t.FieldByName(fe.StructField()); ok {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
	}
	return fe.Field()
}

func message(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", label, fe.Param())
	case "fullname":
		return label + " can only contain letters, spaces, hyphens, and apostrophes"
	case "special":
		return label + " must contain at least one special character (@$!%*?&)"
	case "username":
		return label + " can only contain lowercase letters, numbers, and underscores"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "image":
		return label + " must be a png, jpg, webp or gif file"
	default:
		return label + " is invalid"
	}
}
