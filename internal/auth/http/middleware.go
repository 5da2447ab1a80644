package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authDomain "github.com/22club/communications/internal/auth/domain"
	authUseCase "github.com/22club/communications/internal/auth/usecase"
	"github.com/22club/communications/internal/httputil"
)

// AuthenticationMiddleware authenticates the Bearer access token in the Authorization header.
//
// Error handling:
//   - Missing, malformed or empty Authorization header → 401 Unauthorized
//   - Invalid/expired token → 401 Unauthorized
//   - Other errors → 500 Internal Server Error
func AuthenticationMiddleware(
	sessionUseCase authUseCase.SessionUseCase,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		const bearerPrefix = "bearer "
		if len(authHeader) <= len(bearerPrefix) ||
			!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			logger.Debug("authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, authDomain.ErrInvalidSession, logger)
			return
		}

		accessToken := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if accessToken == "" {
			logger.Debug("authentication failed: empty bearer token")
			httputil.HandleErrorGin(c, authDomain.ErrInvalidSession, logger)
			return
		}

		principal, err := sessionUseCase.Authenticate(c.Request.Context(), accessToken)
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			return
		}

		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))

		logger.Debug("authentication successful",
			slog.String("user_id", principal.UserID.String()),
			slog.String("role", string(principal.Role)))

		c.Next()
	}
}

// RequireRoles rejects callers whose profile role is not one of roles.
// It MUST be used after AuthenticationMiddleware.
func RequireRoles(logger *slog.Logger, roles ...authDomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c.Request.Context())
		if !ok {
			logger.Debug("authorization failed: no authenticated principal in context")
			httputil.HandleErrorGin(c, authDomain.ErrInvalidSession, logger)
			return
		}

		if !principal.Role.IsOneOf(roles...) {
			logger.Debug("authorization failed: insufficient role",
				slog.String("user_id", principal.UserID.String()),
				slog.String("role", string(principal.Role)))
			httputil.HandleErrorGin(c, authDomain.ErrInsufficientRole, logger)
			return
		}

		c.Next()
	}
}
