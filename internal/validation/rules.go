// Package validation provides custom validation rules for the application.
package validation

import (
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/22club/communications/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput,
// keeping the validation text as the caller-facing message.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// UUID validates that a string is a canonical UUID.
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil && len(s) == 36
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// EachUUID validates every element of a string slice as a UUID.
var EachUUID = validation.Each(UUID)
