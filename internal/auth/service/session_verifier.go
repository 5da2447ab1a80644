package service

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	authDomain "github.com/22club/communications/internal/auth/domain"
	apperrors "github.com/22club/communications/internal/errors"
)

// sessionTokenClaims mirrors the access token payload of the identity provider.
type sessionTokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// jwtSessionVerifier implements SessionVerifier for HS256 signed JWTs.
type jwtSessionVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTSessionVerifier creates a SessionVerifier for tokens signed with secret.
// Empty issuer or audience disables the corresponding check.
func NewJWTSessionVerifier(secret []byte, issuer, audience string) SessionVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &jwtSessionVerifier{
		secret: secret,
		parser: jwt.NewParser(opts...),
	}
}

// Verify parses and validates the token.
func (v *jwtSessionVerifier) Verify(token string) (*SessionClaims, error) {
	if len(v.secret) == 0 {
		return nil, apperrors.Wrap(authDomain.ErrInvalidSession, "session secret not configured")
	}

	claims := &sessionTokenClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, apperrors.Wrap(authDomain.ErrInvalidSession, err.Error())
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.Wrap(authDomain.ErrInvalidSession, "invalid subject")
	}

	return &SessionClaims{
		UserID:    userID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
