package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/vigilia-api/internal/models"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

// NewValidator returns a validator with the custom tags used by request payloads.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		return PasswordMeetsPolicy(fl.Field().String())
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, _, err := models.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

// maxPasswordBytes is the most bcrypt will hash.
const maxPasswordBytes = 72

// PasswordMeetsPolicy requires 8 characters to 72 bytes mixing upper case, lower case, digits and symbols.
func PasswordMeetsPolicy(password string) bool {
	if len([]rune(password)) < 8 || len(password) > maxPasswordBytes {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

var fieldMessages = map[string]string{
	"password_policy": "Password does not meet requirements",
	"email":           "Invalid email format",
	"clock":           "must be a time formatted as HH:MM",
	"uuid":            "must be a UUID",
}

// validationError converts validator output into a VALIDATION_ERROR carrying one message per field.
func validationError(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fieldPath(fe.Namespace())
		if msg, ok := fieldMessages[fe.Tag()]; ok {
			details[field] = msg
			continue
		}
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "min":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			details[field] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), details)
}

// invalidField reports a single field problem found outside struct tags.
func invalidField(message, field, detail string) error {
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), map[string]string{field: detail})
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}
