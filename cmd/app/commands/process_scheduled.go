package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	communicationUseCase "github.com/22club/communications/internal/communication/usecase"
)

// RunProcessScheduled runs one pass over the due scheduled communications and
// prints the summary. It is meant for an external cron when the in-process
// scheduler is disabled.
func RunProcessScheduled(
	ctx context.Context,
	scheduledUseCase communicationUseCase.ScheduledUseCase,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	run, err := scheduledUseCase.ProcessScheduled(ctx)
	if err != nil {
		return fmt.Errorf("failed to process scheduled communications: %w", err)
	}

	logger.Info("scheduled communications processed",
		slog.Int("processed", run.Processed),
		slog.Int("sent", run.Sent),
		slog.Int("failed", run.Failed),
	)

	if format == "json" {
		return writeJSON(out, run)
	}

	_, err = fmt.Fprintf(out, "processed: %d, sent: %d, failed: %d\n", run.Processed, run.Sent, run.Failed)
	return err
}
