package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/credkit/pkg/errors"
)

// defaultValidator is shared; validator.Validate caches struct metadata and is safe for concurrent use.
var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// ValidateStruct validates s against its `validate` tags.
// The first failing field is reported as a CredError with code validation_error;
// every failing field is attached to the error's "fields" metadata.
func ValidateStruct(s interface{}) error {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return errors.WrapError(err, errors.CodeInternal, "validation could not run")
	}

	details := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		details[fieldName(fe)] = formatValidationError(fe)
	}

	first := validationErrors[0]
	name := fieldName(first)
	if first.Tag() == "required" || first.Tag() == "min" {
		return errors.ErrValidation(name).WithMetadata("fields", details)
	}
	return errors.NewError(
		errors.CodeValidation,
		"A configuration value is invalid.",
		fmt.Sprintf("%s %s", name, formatValidationError(first)),
	).WithMetadata("parameter", name).
		WithMetadata("fields", details)
}

// formatValidationError creates a user-friendly error message for a validation error.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

// fieldName renders the dotted struct path below the root in snake_case,
// e.g. Config.Storage.Backend becomes storage.backend.
func fieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = toSnakeCase(p)
	}
	return strings.Join(parts, ".")
}

// toSnakeCase converts a string from CamelCase to snake_case.
func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
