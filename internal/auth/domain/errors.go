package domain

import (
	"github.com/22club/communications/internal/errors"
)

// Authentication and authorization errors.
var (
	// ErrProfileNotFound indicates no profile exists for the user.
	ErrProfileNotFound = errors.Wrap(errors.ErrNotFound, "profile not found")

	// ErrInvalidSession indicates the bearer token is missing, malformed, expired or not signed by us.
	ErrInvalidSession = errors.WithMessage(errors.ErrUnauthorized, "Unauthorized")

	// ErrInsufficientRole indicates the caller's role may not perform the operation.
	ErrInsufficientRole = errors.WithMessage(errors.ErrForbidden, "Forbidden")
)
