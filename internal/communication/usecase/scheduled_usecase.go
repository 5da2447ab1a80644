package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
)

// SchedulerConfig holds scheduled processor configuration.
type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// scheduledUseCase implements ScheduledUseCase.
type scheduledUseCase struct {
	config            SchedulerConfig
	communicationRepo CommunicationRepository
	dispatcher        DispatchUseCase
	logger            *slog.Logger
	now               func() time.Time
}

// NewScheduledUseCase creates a ScheduledUseCase that delivers through dispatcher.
func NewScheduledUseCase(
	config SchedulerConfig,
	communicationRepo CommunicationRepository,
	dispatcher DispatchUseCase,
	logger *slog.Logger,
) ScheduledUseCase {
	return &scheduledUseCase{
		config:            config,
		communicationRepo: communicationRepo,
		dispatcher:        dispatcher,
		logger:            logger,
		now:               time.Now,
	}
}

// Start runs the processing loop until ctx is cancelled.
func (uc *scheduledUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting scheduled communications processor",
			slog.Duration("interval", uc.config.Interval),
			slog.Int("batch_size", uc.config.BatchSize),
		)
	}

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping scheduled communications processor")
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.ProcessScheduled(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to process scheduled communications", slog.Any("error", err))
				}
			}
		}
	}
}

// ProcessScheduled claims each due communication by moving it to sending and
// dispatches it. A failing communication does not stop the others.
func (uc *scheduledUseCase) ProcessScheduled(ctx context.Context) (*domain.ScheduledRun, error) {
	due, err := uc.communicationRepo.ListDueScheduled(ctx, uc.now().UTC(), uc.config.BatchSize)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list scheduled communications")
	}

	run := &domain.ScheduledRun{Success: true}
	if len(due) == 0 {
		return run, nil
	}

	if uc.logger != nil {
		uc.logger.Info("processing scheduled communications", slog.Int("count", len(due)))
	}

	for _, communication := range due {
		claimed, err := uc.communicationRepo.TransitionStatus(
			ctx, communication.ID, domain.StatusScheduled, domain.StatusSending,
		)
		if err != nil {
			run.Processed++
			run.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("Communication %s: %s", communication.ID, err))
			continue
		}
		if !claimed {
			// Another processor, or a manual send, picked it up first.
			continue
		}

		run.Processed++
		result, err := uc.dispatcher.Send(ctx, communication.ID)
		if err != nil {
			run.Failed++
			run.Errors = append(run.Errors, fmt.Sprintf("Communication %s: %s", communication.ID, err))
			if uc.logger != nil {
				uc.logger.Error("failed to send scheduled communication",
					slog.String("communication_id", communication.ID.String()),
					slog.Any("error", err),
				)
			}
			continue
		}

		if result.Success {
			run.Sent++
		} else {
			run.Failed++
			if result.Error != "" {
				run.Errors = append(run.Errors, fmt.Sprintf("Communication %s: %s", communication.ID, result.Error))
			}
		}
		run.Errors = append(run.Errors, result.Errors...)
	}

	run.Success = run.Sent > 0
	if uc.logger != nil {
		uc.logger.Info("processed scheduled communications",
			slog.Int("processed", run.Processed),
			slog.Int("sent", run.Sent),
			slog.Int("failed", run.Failed),
		)
	}
	return run, nil
}

// Schedule plans a communication for delivery at the given time.
func (uc *scheduledUseCase) Schedule(ctx context.Context, communicationID uuid.UUID, at time.Time) error {
	communication, err := uc.communicationRepo.Get(ctx, communicationID)
	if err != nil {
		return err
	}
	if !communication.CanSchedule() {
		return domain.ErrCannotSchedule
	}
	if !at.After(uc.now()) {
		return domain.ErrScheduleInPast
	}

	ok, err := uc.communicationRepo.Schedule(ctx, communicationID, at.UTC())
	if err != nil {
		return apperrors.Wrap(err, "failed to schedule communication")
	}
	if !ok {
		return domain.ErrCannotSchedule
	}
	return nil
}
