package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
	"github.com/22club/communications/internal/metrics"
)

// Config tunes batch delivery.
type Config struct {
	// BatchSize is the number of recipients delivered in parallel. Values below 1 mean 1.
	BatchSize int
	// BatchDelay is the minimum spacing between the start of two batches.
	BatchDelay time.Duration
	// Metrics counts each recipient outcome. Nil disables counting.
	Metrics metrics.DeliveryMetrics
}

// allFailedSummarizer is implemented by deliverers that explain a run in which
// every recipient failed.
type allFailedSummarizer interface {
	AllFailed(total int) string
}

// batchSender implements Sender on top of a Deliverer.
type batchSender struct {
	deliverer         Deliverer
	communicationRepo CommunicationRepository
	recipientRepo     RecipientRepository
	directoryRepo     DirectoryRepository
	config            Config
	logger            *slog.Logger
}

// NewBatchSender creates a Sender that delivers pending recipients in paced,
// parallel batches through deliverer.
func NewBatchSender(
	deliverer Deliverer,
	communicationRepo CommunicationRepository,
	recipientRepo RecipientRepository,
	directoryRepo DirectoryRepository,
	config Config,
	logger *slog.Logger,
) Sender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpDeliveryMetrics{}
	}
	return &batchSender{
		deliverer:         deliverer,
		communicationRepo: communicationRepo,
		recipientRepo:     recipientRepo,
		directoryRepo:     directoryRepo,
		config:            config,
		logger:            logger,
	}
}

// Channel returns the deliverer's channel.
func (s *batchSender) Channel() domain.Channel {
	return s.deliverer.Channel()
}

// Send delivers the communication to its pending recipients on this channel.
func (s *batchSender) Send(ctx context.Context, communicationID uuid.UUID) (domain.SendResult, error) {
	ch := s.deliverer.Channel()

	communication, err := s.communicationRepo.Get(ctx, communicationID)
	if err != nil {
		return domain.SendResult{}, err
	}
	if !communication.Type.Includes(ch) {
		msg := fmt.Sprintf("Communication type is not %s", channelLabel(ch))
		return domain.SendResult{Errors: []string{msg}, Error: msg}, nil
	}

	result, err := s.send(ctx, communication)
	if err != nil {
		s.markFailed(ctx, communicationID, err)
		return domain.SendResult{}, apperrors.Wrapf(err, "failed to send %s communication", ch)
	}
	return result, nil
}

func (s *batchSender) send(ctx context.Context, communication *domain.Communication) (domain.SendResult, error) {
	ch := s.deliverer.Channel()

	recipients, err := s.recipientRepo.ListPending(ctx, communication.ID, ch)
	if err != nil {
		return domain.SendResult{}, err
	}
	// Nothing to do on this channel: the status set by other channels stands.
	if len(recipients) == 0 {
		return domain.SendResult{Success: true}, nil
	}

	err = s.communicationRepo.UpdateStatus(ctx, communication.ID, domain.StatusUpdate{Status: domain.StatusSending})
	if err != nil {
		return domain.SendResult{}, err
	}

	result := domain.SendResult{Total: len(recipients)}
	pacer := s.pacer()
	size := max(s.config.BatchSize, 1)

	for start := 0; start < len(recipients); start += size {
		if err := pacer.Wait(ctx); err != nil {
			return domain.SendResult{}, err
		}

		batch := recipients[start:min(start+size, len(recipients))]
		failures, err := s.deliverBatch(ctx, communication, batch)
		if err != nil {
			return domain.SendResult{}, err
		}

		for i, failure := range failures {
			if failure == "" {
				result.Sent++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("User %s: %s", batch[i].UserID, failure))
		}
	}

	if err := s.communicationRepo.RefreshStats(ctx, communication.ID); err != nil {
		return domain.SendResult{}, err
	}

	status := domain.StatusSent
	if result.Failed == result.Total {
		status = domain.StatusFailed
	}
	now := time.Now().UTC()
	err = s.communicationRepo.UpdateStatus(ctx, communication.ID, domain.StatusUpdate{Status: status, SentAt: &now})
	if err != nil {
		return domain.SendResult{}, err
	}

	result.Success = result.Sent > 0
	if !result.Success {
		if summarizer, ok := s.deliverer.(allFailedSummarizer); ok {
			result.Error = summarizer.AllFailed(result.Total)
		}
	}

	s.logger.Info("communication delivered",
		slog.String("communication_id", communication.ID.String()),
		slog.String("channel", string(ch)),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Int("total", result.Total),
	)

	return result, nil
}

// deliverBatch delivers every recipient of the batch in parallel. The returned
// slice holds the failure message of each recipient, empty on success.
func (s *batchSender) deliverBatch(
	ctx context.Context,
	communication *domain.Communication,
	batch []*domain.Recipient,
) ([]string, error) {
	userIDs := make([]uuid.UUID, 0, len(batch))
	for _, r := range batch {
		userIDs = append(userIDs, r.UserID)
	}
	contacts, err := s.directoryRepo.ContactsByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	failures := make([]string, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range batch {
		g.Go(func() error {
			failure, err := s.deliver(gctx, communication, r, contacts[r.UserID])
			failures[i] = failure
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return failures, nil
}

// deliver runs the deliverer for one recipient and stores the outcome on its
// row. It returns the failure message, empty on success; the error is only
// set when the outcome could not be stored.
func (s *batchSender) deliver(
	ctx context.Context,
	communication *domain.Communication,
	recipient *domain.Recipient,
	contact domain.Contact,
) (string, error) {
	metadata, deliverErr := s.deliverer.Deliver(ctx, communication, recipient, contact)
	now := time.Now().UTC()
	ch := string(recipient.RecipientType)

	if deliverErr != nil {
		s.config.Metrics.RecordDelivery(ctx, ch, "failed")
		msg := deliverErr.Error()
		s.logger.Warn("recipient delivery failed",
			slog.String("recipient_id", recipient.ID.String()),
			slog.String("channel", ch),
			slog.Any("error", deliverErr),
		)
		update := domain.RecipientUpdate{
			Status:       domain.RecipientStatusFailed,
			FailedAt:     &now,
			ErrorMessage: &msg,
		}
		return msg, s.recipientRepo.UpdateStatus(ctx, recipient.ID, update)
	}

	s.config.Metrics.RecordDelivery(ctx, ch, "sent")
	update := domain.RecipientUpdate{
		Status:   domain.RecipientStatusSent,
		SentAt:   &now,
		Metadata: metadata,
	}
	return "", s.recipientRepo.UpdateStatus(ctx, recipient.ID, update)
}

// SendToRecipient delivers the communication to one recipient row and
// refreshes the communication's counters.
func (s *batchSender) SendToRecipient(ctx context.Context, recipientID uuid.UUID) (domain.SendResult, error) {
	recipient, err := s.recipientRepo.GetByID(ctx, recipientID)
	if err != nil {
		return domain.SendResult{}, err
	}
	if recipient.RecipientType != s.deliverer.Channel() {
		return domain.SendResult{}, domain.ErrChannelMismatch
	}

	communication, err := s.communicationRepo.Get(ctx, recipient.CommunicationID)
	if err != nil {
		return domain.SendResult{}, err
	}

	contacts, err := s.directoryRepo.ContactsByUserIDs(ctx, []uuid.UUID{recipient.UserID})
	if err != nil {
		return domain.SendResult{}, apperrors.Wrap(err, "failed to load recipient contact")
	}

	failure, err := s.deliver(ctx, communication, recipient, contacts[recipient.UserID])
	if err != nil {
		return domain.SendResult{}, apperrors.Wrap(err, "failed to update recipient")
	}
	if err := s.communicationRepo.RefreshStats(ctx, communication.ID); err != nil {
		return domain.SendResult{}, apperrors.Wrap(err, "failed to refresh communication stats")
	}

	if failure != "" {
		return domain.SendResult{
			Failed: 1,
			Total:  1,
			Errors: []string{fmt.Sprintf("User %s: %s", recipient.UserID, failure)},
			Error:  failure,
		}, nil
	}
	return domain.SendResult{Success: true, Sent: 1, Total: 1}, nil
}

// pacer spaces batch starts by BatchDelay. The first batch starts immediately.
func (s *batchSender) pacer() *rate.Limiter {
	if s.config.BatchDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.config.BatchDelay), 1)
}

// markFailed records cause on the communication. Write errors are only logged.
func (s *batchSender) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	update := domain.StatusUpdate{
		Status:  domain.StatusFailed,
		Failure: &domain.Failure{Error: cause.Error(), FailedAt: time.Now().UTC()},
	}
	if err := s.communicationRepo.UpdateStatus(context.WithoutCancel(ctx), id, update); err != nil {
		s.logger.Error("failed to mark communication as failed",
			slog.String("communication_id", id.String()),
			slog.Any("error", err),
		)
	}
}

func channelLabel(ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return "SMS"
	}
	return string(ch)
}
