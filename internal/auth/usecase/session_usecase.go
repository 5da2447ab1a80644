package usecase

import (
	"context"

	authDomain "github.com/22club/communications/internal/auth/domain"
	authService "github.com/22club/communications/internal/auth/service"
	apperrors "github.com/22club/communications/internal/errors"
)

// sessionUseCase implements SessionUseCase.
type sessionUseCase struct {
	verifier    authService.SessionVerifier
	profileRepo ProfileRepository
}

// Authenticate verifies the token, then looks up the caller's role.
func (s *sessionUseCase) Authenticate(
	ctx context.Context,
	accessToken string,
) (*authDomain.Principal, error) {
	claims, err := s.verifier.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	principal := &authDomain.Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
	}

	profile, err := s.profileRepo.GetByUserID(ctx, claims.UserID)
	if err != nil {
		if apperrors.Is(err, authDomain.ErrProfileNotFound) {
			return principal, nil
		}
		return nil, err
	}

	principal.Role = profile.Role
	return principal, nil
}

// NewSessionUseCase creates a new SessionUseCase.
func NewSessionUseCase(
	verifier authService.SessionVerifier,
	profileRepo ProfileRepository,
) SessionUseCase {
	return &sessionUseCase{
		verifier:    verifier,
		profileRepo: profileRepo,
	}
}
