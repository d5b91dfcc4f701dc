// Package validator provides struct validation utilities with custom
// validators for the discovery domain.
package validator

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/domain/source"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("cred_type", validateCredType)
	_ = v.RegisterValidation("source_type", validateSourceType)
	_ = v.RegisterValidation("scan_type", validateScanType)
	_ = v.RegisterValidation("become_method", validateBecomeMethod)

	return &Validator{validate: v}
}

// Validate validates a struct and returns user-friendly errors.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if stderrors.As(err, &invalid) {
		return fmt.Errorf("validation setup error: %w", err)
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "cred_type":
		return "must be a valid credential type"
	case "source_type":
		return "must be a valid source type"
	case "scan_type":
		return "must be a valid scan type"
	case "become_method":
		return "must be a valid become method"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func validateCredType(fl validator.FieldLevel) bool {
	return credential.Type(fl.Field().String()).IsValid()
}

func validateSourceType(fl validator.FieldLevel) bool {
	return source.Type(fl.Field().String()).IsValid()
}

func validateScanType(fl validator.FieldLevel) bool {
	return scan.ScanType(fl.Field().String()).IsValid()
}

func validateBecomeMethod(fl validator.FieldLevel) bool {
	return credential.BecomeMethod(fl.Field().String()).IsValid()
}
