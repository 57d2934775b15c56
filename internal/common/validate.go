package common

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	validator "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{6,19}$`)
)

// Validator returns the shared validator, reporting fields by their JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		// singleline rejects CR, LF and other control characters in values that end up in headers.
		_ = validate.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
			return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
		})
	})
	return validate
}

// ValidateStruct checks v against its `validate` tags. Failures become a 400 AppError whose
// details map each offending field to the rule it broke.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return NewAppError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest, err).WithDetails(map[string]any{"fields": fields})
}

// BindJSON decodes the request body into dst and validates it.
func BindJSON(r *http.Request, dst any) error {
	if err := DecodeJSON(r, dst); err != nil {
		return err
	}
	return ValidateStruct(dst)
}
