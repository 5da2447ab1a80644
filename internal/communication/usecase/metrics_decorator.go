package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/metrics"
)

// dispatchUseCaseWithMetrics decorates DispatchUseCase with metrics instrumentation.
type dispatchUseCaseWithMetrics struct {
	next    DispatchUseCase
	metrics metrics.BusinessMetrics
}

// NewDispatchUseCaseWithMetrics wraps a DispatchUseCase with metrics recording.
func NewDispatchUseCaseWithMetrics(useCase DispatchUseCase, m metrics.BusinessMetrics) DispatchUseCase {
	return &dispatchUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Send records metrics for communication dispatches.
func (d *dispatchUseCaseWithMetrics) Send(ctx context.Context, communicationID uuid.UUID) (*domain.SendResult, error) {
	start := time.Now()
	result, err := d.next.Send(ctx, communicationID)

	status := resultStatus(result, err)
	d.metrics.RecordOperation(ctx, "communication_send", status, time.Since(start))

	return result, err
}

// SendToRecipient records metrics for single recipient resends.
func (d *dispatchUseCaseWithMetrics) SendToRecipient(
	ctx context.Context,
	recipientID uuid.UUID,
) (*domain.SendResult, error) {
	start := time.Now()
	result, err := d.next.SendToRecipient(ctx, recipientID)

	status := resultStatus(result, err)
	d.metrics.RecordOperation(ctx, "recipient_resend", status, time.Since(start))

	return result, err
}

// resultStatus is "error" when the dispatch did not complete, "failed" when
// nothing was delivered and "success" otherwise.
func resultStatus(result *domain.SendResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case result == nil || !result.Success:
		return "failed"
	default:
		return "success"
	}
}

// scheduledUseCaseWithMetrics decorates ScheduledUseCase with metrics instrumentation.
type scheduledUseCaseWithMetrics struct {
	ScheduledUseCase
	metrics metrics.BusinessMetrics
}

// NewScheduledUseCaseWithMetrics wraps a ScheduledUseCase with metrics recording.
// Start is not decorated; each pass it triggers goes through ProcessScheduled of
// the wrapped use case.
func NewScheduledUseCaseWithMetrics(useCase ScheduledUseCase, m metrics.BusinessMetrics) ScheduledUseCase {
	return &scheduledUseCaseWithMetrics{
		ScheduledUseCase: useCase,
		metrics:          m,
	}
}

// ProcessScheduled records metrics for scheduled processing passes.
func (s *scheduledUseCaseWithMetrics) ProcessScheduled(ctx context.Context) (*domain.ScheduledRun, error) {
	start := time.Now()
	run, err := s.ScheduledUseCase.ProcessScheduled(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "scheduled_process", status, time.Since(start))

	return run, err
}

// Schedule records metrics for scheduling requests.
func (s *scheduledUseCaseWithMetrics) Schedule(ctx context.Context, communicationID uuid.UUID, at time.Time) error {
	start := time.Now()
	err := s.ScheduledUseCase.Schedule(ctx, communicationID, at)

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metrics.RecordOperation(ctx, "communication_schedule", status, time.Since(start))

	return err
}
