// AngelaMos | 2026
// validation.go

package core

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const minPasswordLength = 8

// NewValidator returns a validator that reports JSON field names and knows
// the strongpassword and maxdecimals2 tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	//nolint:errcheck // tags are static and valid
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})

	//nolint:errcheck // tags are static and valid
	_ = v.RegisterValidation("maxdecimals2", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			return HasAtMostTwoDecimals(fl.Field().Float())
		default:
			return false
		}
	})

	return v
}

// ValidateID rejects malformed path identifiers as absent records so that
// they never reach the store.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("parse id: %w", ErrNotFound)
	}
	return nil
}

func IsStrongPassword(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	return lower && upper && digit && symbol
}

func HasAtMostTwoDecimals(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

func ValidationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeRule(fe)
	}
	return fields
}

func FormatValidationError(err error) string {
	fields := ValidationFields(err)
	if len(fields) == 0 {
		return "invalid request"
	}

	parts := make([]string, 0, len(fields))
	for field, msg := range fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidationError builds a field-identified ValidationFailed response.
func ValidationError(err error) *AppError {
	return InvalidInputError(FormatValidationError(err), ValidationFields(err))
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a valid id"
	case "strongpassword":
		return "must have 8+ characters with upper, lower, digit and symbol"
	case "maxdecimals2":
		return "must have at most 2 decimal places"
	default:
		return "failed " + fe.Tag()
	}
}
