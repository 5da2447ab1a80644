// Package service provides technical services for authentication operations.
package service

import (
	"time"

	"github.com/google/uuid"
)

// SessionClaims are the verified claims of a session access token.
type SessionClaims struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// SessionVerifier validates session access tokens issued by the identity provider.
type SessionVerifier interface {
	// Verify checks signature, expiry, issuer and audience and returns the claims.
	// Any failure is reported as authDomain.ErrInvalidSession.
	Verify(token string) (*SessionClaims, error)
}
