package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	communicationUseCase "github.com/22club/communications/internal/communication/usecase"
)

// RunSendCommunication dispatches one communication and prints its delivery counts.
// A run in which every recipient failed is printed, not returned as an error.
func RunSendCommunication(
	ctx context.Context,
	dispatchUseCase communicationUseCase.DispatchUseCase,
	logger *slog.Logger,
	out io.Writer,
	rawID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	communicationID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid communication id %q: %w", rawID, err)
	}

	logger.Info("sending communication", slog.String("communication_id", communicationID.String()))

	result, err := dispatchUseCase.Send(ctx, communicationID)
	if err != nil {
		return fmt.Errorf("failed to send communication: %w", err)
	}

	if format == "json" {
		return writeJSON(out, result)
	}

	_, err = fmt.Fprintf(out, "%s\nsent: %d, failed: %d, total: %d\n",
		result.Message(), result.Sent, result.Failed, result.Total)
	for _, e := range result.Errors {
		if err != nil {
			break
		}
		_, err = fmt.Fprintf(out, "  - %s\n", e)
	}
	return err
}
