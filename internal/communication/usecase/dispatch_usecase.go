package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
)

const (
	// DefaultSendTimeout bounds a dispatch whose audience size is not known.
	DefaultSendTimeout = 5 * time.Minute

	allRecipientsFailed = "All recipients failed"
	noPendingRecipients = "No pending recipients to deliver"
)

// DispatchConfig holds dispatch configuration.
type DispatchConfig struct {
	// ConcurrentChannels sends the channels of an "all" communication in
	// parallel instead of push, email, sms in order.
	ConcurrentChannels bool
	// DefaultTimeout is used when the communication has no recipient total.
	DefaultTimeout time.Duration
}

// dispatchUseCase implements DispatchUseCase.
type dispatchUseCase struct {
	config            DispatchConfig
	communicationRepo CommunicationRepository
	recipientRepo     RecipientRepository
	resolver          RecipientResolver
	senders           map[domain.Channel]ChannelSender
	logger            *slog.Logger
	timeoutFor        func(recipients int) time.Duration
	race              func(
		ctx context.Context,
		timeout time.Duration,
		fn func(context.Context) (domain.SendResult, error),
	) (domain.SendResult, error)
}

// NewDispatchUseCase creates a DispatchUseCase that delivers through senders,
// one per channel.
func NewDispatchUseCase(
	config DispatchConfig,
	communicationRepo CommunicationRepository,
	recipientRepo RecipientRepository,
	resolver RecipientResolver,
	senders []ChannelSender,
	logger *slog.Logger,
) DispatchUseCase {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bySender := make(map[domain.Channel]ChannelSender, len(senders))
	for _, s := range senders {
		bySender[s.Channel()] = s
	}
	return &dispatchUseCase{
		config:            config,
		communicationRepo: communicationRepo,
		recipientRepo:     recipientRepo,
		resolver:          resolver,
		senders:           bySender,
		logger:            logger,
		timeoutFor:        domain.SendTimeout,
		race:              RaceDeadline[domain.SendResult],
	}
}

// Send validates, resolves and delivers a communication.
func (uc *dispatchUseCase) Send(ctx context.Context, communicationID uuid.UUID) (*domain.SendResult, error) {
	communication, err := uc.communicationRepo.Get(ctx, communicationID)
	if err != nil {
		if apperrors.Is(err, domain.ErrCommunicationNotFound) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "failed to load communication")
	}
	if !communication.CanDispatch() {
		return nil, domain.ErrInvalidStatus
	}

	if communication.Status == domain.StatusFailed {
		uc.resetFailed(ctx, communicationID)
	}

	result, err := uc.send(ctx, communication)
	switch {
	case err == nil:
		return result, nil
	case apperrors.Is(err, domain.ErrNoRecipients), apperrors.Is(err, domain.ErrSendTimeout):
		return nil, err
	default:
		uc.markFailed(ctx, communicationID, err.Error(), nil)
		return nil, apperrors.Wrap(err, "failed to send communication")
	}
}

// send runs the pipeline after validation. Zero recipients and timeouts are
// recorded on the communication before they are returned.
func (uc *dispatchUseCase) send(ctx context.Context, communication *domain.Communication) (*domain.SendResult, error) {
	id := communication.ID

	if _, err := uc.resolver.EnsureRecipients(ctx, communication); err != nil {
		return nil, err
	}

	count, err := uc.recipientRepo.CountByCommunication(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count recipients")
	}
	if count == 0 {
		msg, _ := apperrors.PublicMessage(domain.ErrNoRecipients)
		uc.markFailed(ctx, id, msg, nil)
		return nil, domain.ErrNoRecipients
	}

	// Reload to pick up the total stored by the resolver.
	communication, err = uc.communicationRepo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to reload communication")
	}

	timeout := uc.config.DefaultTimeout
	if communication.TotalRecipients > 0 {
		timeout = uc.timeoutFor(communication.TotalRecipients)
	}

	result, err := uc.race(ctx, timeout, func(ctx context.Context) (domain.SendResult, error) {
		return uc.dispatch(ctx, communication)
	})
	if err != nil {
		if apperrors.Is(err, domain.ErrSendTimeout) {
			uc.logger.Error("communication send timed out",
				slog.String("communication_id", id.String()),
				slog.Duration("timeout", timeout),
			)
			uc.markFailed(ctx, id, err.Error(), nil)
		}
		return nil, err
	}

	result, err = uc.finish(ctx, communication, result)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("communication dispatched",
		slog.String("communication_id", id.String()),
		slog.String("type", string(communication.Type)),
		slog.Bool("success", result.Success),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Int("total", result.Total),
	)

	return &result, nil
}

// finish writes the terminal status of a dispatch that returned. Senders only
// see their own channel, so an "all" communication is settled here from the
// merged result, and a run that found nothing pending is settled from the
// stored recipient counters.
func (uc *dispatchUseCase) finish(
	ctx context.Context,
	communication *domain.Communication,
	result domain.SendResult,
) (domain.SendResult, error) {
	ctx = context.WithoutCancel(ctx)
	id := communication.ID

	switch {
	case result.TotalFailure():
		msg := result.Error
		if msg == "" {
			msg = allRecipientsFailed
		}
		uc.markFailed(ctx, id, msg, result.Errors)
	case result.Total == 0:
		return uc.settleFromStats(ctx, id, result)
	case len(communication.Type.Channels()) > 1:
		if err := uc.markSent(ctx, id); err != nil {
			return domain.SendResult{}, err
		}
	}
	return result, nil
}

// settleFromStats closes a dispatch in which no channel had pending
// recipients: sent when an earlier run delivered to anyone, failed otherwise.
func (uc *dispatchUseCase) settleFromStats(
	ctx context.Context,
	id uuid.UUID,
	result domain.SendResult,
) (domain.SendResult, error) {
	if err := uc.communicationRepo.RefreshStats(ctx, id); err != nil {
		return domain.SendResult{}, apperrors.Wrap(err, "failed to refresh communication stats")
	}
	communication, err := uc.communicationRepo.Get(ctx, id)
	if err != nil {
		return domain.SendResult{}, apperrors.Wrap(err, "failed to reload communication")
	}

	if communication.TotalSent+communication.TotalDelivered+communication.TotalOpened > 0 {
		if err := uc.markSent(ctx, id); err != nil {
			return domain.SendResult{}, err
		}
		result.Success = true
		return result, nil
	}

	result.Success = false
	result.Error = noPendingRecipients
	uc.markFailed(ctx, id, noPendingRecipients, result.Errors)
	return result, nil
}

// markSent sets status sent, stamping sent_at.
func (uc *dispatchUseCase) markSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	update := domain.StatusUpdate{Status: domain.StatusSent, SentAt: &now}
	if err := uc.communicationRepo.UpdateStatus(ctx, id, update); err != nil {
		return apperrors.Wrap(err, "failed to mark communication as sent")
	}
	return nil
}

// dispatch invokes the senders of the communication's channels and merges
// their results. Sender errors become failed partial results.
func (uc *dispatchUseCase) dispatch(ctx context.Context, communication *domain.Communication) (domain.SendResult, error) {
	channels := communication.Type.Channels()
	if len(channels) == 0 {
		return domain.SendResult{}, domain.ErrUnknownType
	}

	results := make([]domain.SendResult, len(channels))
	if uc.config.ConcurrentChannels && len(channels) > 1 {
		var g errgroup.Group
		for i, ch := range channels {
			g.Go(func() error {
				results[i] = uc.sendChannel(ctx, ch, communication.ID)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, ch := range channels {
			results[i] = uc.sendChannel(ctx, ch, communication.ID)
		}
	}

	return domain.MergeResults(results...), nil
}

func (uc *dispatchUseCase) sendChannel(ctx context.Context, ch domain.Channel, id uuid.UUID) domain.SendResult {
	sender, ok := uc.senders[ch]
	if !ok {
		return domain.FailedResult(fmt.Errorf("no sender configured for channel %s", ch))
	}

	result, err := sender.Send(ctx, id)
	if err != nil {
		uc.logger.Error("channel send failed",
			slog.String("communication_id", id.String()),
			slog.String("channel", string(ch)),
			slog.Any("error", err),
		)
		return domain.FailedResult(err)
	}
	return result
}

// SendToRecipient resends a communication to one recipient row.
func (uc *dispatchUseCase) SendToRecipient(ctx context.Context, recipientID uuid.UUID) (*domain.SendResult, error) {
	recipient, err := uc.recipientRepo.GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	sender, ok := uc.senders[recipient.RecipientType]
	if !ok {
		return nil, domain.ErrUnknownType
	}

	result, err := sender.SendToRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// resetFailed moves a failed communication back to draft. Failures are only logged.
func (uc *dispatchUseCase) resetFailed(ctx context.Context, id uuid.UUID) {
	ok, err := uc.communicationRepo.TransitionStatus(ctx, id, domain.StatusFailed, domain.StatusDraft)
	switch {
	case err != nil:
		uc.logger.Warn("failed to reset failed communication to draft",
			slog.String("communication_id", id.String()),
			slog.Any("error", err),
		)
	case !ok:
		uc.logger.Warn("communication left failed status before reset",
			slog.String("communication_id", id.String()),
		)
	}
}

// markFailed sets status failed with the error in metadata. Write failures are
// logged and never replace the original error.
func (uc *dispatchUseCase) markFailed(ctx context.Context, id uuid.UUID, msg string, errs []string) {
	update := domain.StatusUpdate{
		Status:  domain.StatusFailed,
		Failure: &domain.Failure{Error: msg, Errors: errs, FailedAt: time.Now().UTC()},
	}
	if err := uc.communicationRepo.UpdateStatus(context.WithoutCancel(ctx), id, update); err != nil {
		uc.logger.Error("failed to mark communication as failed",
			slog.String("communication_id", id.String()),
			slog.Any("error", err),
		)
	}
}
