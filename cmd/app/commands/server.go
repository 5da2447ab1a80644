package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/22club/communications/internal/app"
	"github.com/22club/communications/internal/config"
)

// RunServer starts the API server, the metrics server when metrics are enabled
// and the scheduled communications processor when the scheduler is enabled.
// Blocks until SIGINT/SIGTERM or a fatal server error, then shuts everything
// down within DBConnMaxLifetime.
func RunServer(ctx context.Context, cfg *config.Config, version string) error {
	cfg.Version = version
	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	serverErr := make(chan error, 3)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	schedulerDone := make(chan struct{})
	if cfg.SchedulerEnabled {
		scheduledUseCase, err := container.ScheduledUseCase()
		if err != nil {
			return fmt.Errorf("failed to initialize scheduler: %w", err)
		}
		go func() {
			defer close(schedulerDone)
			if err := scheduledUseCase.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				serverErr <- fmt.Errorf("scheduler error: %w", err)
			}
		}()
	} else {
		close(schedulerDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", runErr))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	defer shutdownCancel()

	shutdownErrors := []error{runErr}

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Wait for the scheduler loop to return.
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		shutdownErrors = append(shutdownErrors, errors.New("scheduler did not stop in time"))
	}

	return errors.Join(shutdownErrors...)
}
