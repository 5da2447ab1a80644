package app

import (
	"fmt"

	authRepository "github.com/22club/communications/internal/auth/repository"
	authService "github.com/22club/communications/internal/auth/service"
	authUseCase "github.com/22club/communications/internal/auth/usecase"
)

// SessionVerifier returns the access token verifier.
func (c *Container) SessionVerifier() authService.SessionVerifier {
	c.sessionVerifierInit.Do(func() {
		c.sessionVerifier = c.initSessionVerifier()
	})
	return c.sessionVerifier
}

// ProfileRepository returns the profile repository based on database driver.
func (c *Container) ProfileRepository() (authUseCase.ProfileRepository, error) {
	var err error
	c.profileRepoInit.Do(func() {
		c.profileRepo, err = c.initProfileRepository()
		if err != nil {
			c.initErrors["profileRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["profileRepo"]; exists {
		return nil, storedErr
	}
	return c.profileRepo, nil
}

// SessionUseCase returns the session use case.
func (c *Container) SessionUseCase() (authUseCase.SessionUseCase, error) {
	var err error
	c.sessionUseCaseInit.Do(func() {
		c.sessionUseCase, err = c.initSessionUseCase()
		if err != nil {
			c.initErrors["sessionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionUseCase"]; exists {
		return nil, storedErr
	}
	return c.sessionUseCase, nil
}

// initSessionVerifier creates the HS256 verifier. Every token is rejected while
// AUTH_JWT_SECRET is empty.
func (c *Container) initSessionVerifier() authService.SessionVerifier {
	if c.config.AuthJWTSecret == "" {
		c.Logger().Warn("AUTH_JWT_SECRET not configured, all authenticated requests will be rejected")
	}
	return authService.NewJWTSessionVerifier(
		[]byte(c.config.AuthJWTSecret),
		c.config.AuthJWTIssuer,
		c.config.AuthJWTAudience,
	)
}

// initProfileRepository creates the profile repository based on the database driver.
func (c *Container) initProfileRepository() (authUseCase.ProfileRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for profile repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return authRepository.NewPostgreSQLProfileRepository(db), nil
	case "mysql":
		return authRepository.NewMySQLProfileRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSessionUseCase creates the session use case with all its dependencies.
func (c *Container) initSessionUseCase() (authUseCase.SessionUseCase, error) {
	profileRepo, err := c.ProfileRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile repository for session use case: %w", err)
	}

	return authUseCase.NewSessionUseCase(c.SessionVerifier(), profileRepo), nil
}
