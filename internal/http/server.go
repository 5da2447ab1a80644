// Package http provides the HTTP server, routing and shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authDomain "github.com/22club/communications/internal/auth/domain"
	authHTTP "github.com/22club/communications/internal/auth/http"
	authUseCase "github.com/22club/communications/internal/auth/usecase"
	communicationHTTP "github.com/22club/communications/internal/communication/http"
	"github.com/22club/communications/internal/config"
	"github.com/22club/communications/internal/metrics"
)

// Server wraps the HTTP API server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a server bound to host:port. SetupRouter must be called before Start.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		db:     db,
		logger: logger,
	}
}

// SetupRouter registers middleware and routes.
//
// The write timeout above is long because a send request stays open until the
// dispatch deadline, which grows with the number of recipients.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	communicationHandler *communicationHTTP.CommunicationHandler,
	webhookHandler *communicationHTTP.WebhookHandler,
	sessionUseCase authUseCase.SessionUseCase,
	metricsProvider *metrics.Provider,
) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	communications := v1.Group("/communications")
	communications.Use(authHTTP.AuthenticationMiddleware(sessionUseCase, s.logger))
	communications.Use(authHTTP.RequireRoles(s.logger, authDomain.StaffRoles...))
	if cfg.RateLimitEnabled {
		communications.Use(authHTTP.RateLimitMiddleware(
			ctx,
			cfg.RateLimitRequestsPerSec,
			cfg.RateLimitBurst,
			s.logger,
		))
	}
	{
		communications.POST("/send", communicationHandler.SendHandler)
		communications.GET("/recipients", communicationHandler.ListRecipientsHandler)
		communications.POST("/recipients/count", communicationHandler.CountRecipientsHandler)
		communications.POST("/recipients/:id/resend", communicationHandler.ResendRecipientHandler)
		communications.POST("/:id/schedule", communicationHandler.ScheduleHandler)
	}

	// Provider callbacks authenticate with signatures, not sessions.
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/sms", webhookHandler.SMSHandler)
		webhooks.POST("/email", webhookHandler.EmailHandler)
	}

	s.router = router
}

// GetHandler returns the configured router, nil before SetupRouter.
func (s *Server) GetHandler() http.Handler {
	if s.router == nil {
		return nil
	}
	return s.router
}

// Start serves requests until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only when the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.db.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": "ok"},
	})
}
