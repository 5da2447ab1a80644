// Package usecase defines business logic for authenticating API callers.
package usecase

import (
	"context"

	"github.com/google/uuid"

	authDomain "github.com/22club/communications/internal/auth/domain"
)

// ProfileRepository defines read access to user profiles.
type ProfileRepository interface {
	// GetByUserID retrieves a profile by user id. Returns ErrProfileNotFound if not found.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*authDomain.Profile, error)
}

// SessionUseCase resolves a bearer token into the calling principal.
type SessionUseCase interface {
	// Authenticate verifies the access token and attaches the caller's profile role.
	// Returns ErrInvalidSession for unusable tokens. A user without a profile is
	// returned with an empty role so that authorization rejects it.
	Authenticate(ctx context.Context, accessToken string) (*authDomain.Principal, error)
}
