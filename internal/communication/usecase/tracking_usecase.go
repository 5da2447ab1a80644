package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
)

// ErrMissingMessageID indicates a provider event without a message id.
var ErrMissingMessageID = apperrors.WithMessage(apperrors.ErrInvalidInput, "Missing message id")

// SMSStatusEvent is a Twilio message status callback.
type SMSStatusEvent struct {
	// RecipientID comes from the callback URL and takes precedence over the message id lookup.
	RecipientID *uuid.UUID
	MessageSID  string
	Status      string
}

// Resend webhook event types.
const (
	EmailEventSent       = "email.sent"
	EmailEventDelivered  = "email.delivered"
	EmailEventBounced    = "email.bounced"
	EmailEventComplained = "email.complained"
	EmailEventOpened     = "email.opened"
	EmailEventClicked    = "email.clicked"
)

// EmailEvent is a Resend webhook event.
type EmailEvent struct {
	Type    string
	EmailID string
	// Link is the clicked URL of an email.clicked event.
	Link string
}

// trackingUseCase implements TrackingUseCase.
type trackingUseCase struct {
	communicationRepo CommunicationRepository
	recipientRepo     RecipientRepository
	logger            *slog.Logger
	now               func() time.Time
}

// NewTrackingUseCase creates a TrackingUseCase.
func NewTrackingUseCase(
	communicationRepo CommunicationRepository,
	recipientRepo RecipientRepository,
	logger *slog.Logger,
) TrackingUseCase {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &trackingUseCase{
		communicationRepo: communicationRepo,
		recipientRepo:     recipientRepo,
		logger:            logger,
		now:               time.Now,
	}
}

// TrackSMS applies a message status. Unknown statuses are logged and ignored.
// Returns ErrRecipientNotFound when no recipient matches the event.
func (uc *trackingUseCase) TrackSMS(ctx context.Context, event SMSStatusEvent) error {
	if event.MessageSID == "" {
		return ErrMissingMessageID
	}

	recipient, err := uc.findSMSRecipient(ctx, event)
	if err != nil {
		return err
	}

	now := uc.now().UTC()
	switch event.Status {
	case "queued":
		return nil
	case "sent":
		if recipient.SentAt != nil {
			return nil
		}
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status:   domain.RecipientStatusSent,
			SentAt:   &now,
			Metadata: domain.Metadata{domain.MetadataSMSMessageID: event.MessageSID},
		}, false)
	case "delivered":
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status:      domain.RecipientStatusDelivered,
			DeliveredAt: &now,
		}, true)
	case "failed", "undelivered":
		msg := "SMS " + event.Status
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status:       domain.RecipientStatusFailed,
			FailedAt:     &now,
			ErrorMessage: &msg,
		}, true)
	default:
		uc.logger.Warn("unhandled sms status",
			slog.String("status", event.Status),
			slog.String("message_sid", event.MessageSID),
		)
		return nil
	}
}

func (uc *trackingUseCase) findSMSRecipient(ctx context.Context, event SMSStatusEvent) (*domain.Recipient, error) {
	if event.RecipientID != nil {
		recipient, err := uc.recipientRepo.GetByID(ctx, *event.RecipientID)
		switch {
		case err == nil && recipient.RecipientType == domain.ChannelSMS:
			return recipient, nil
		case err != nil && !apperrors.Is(err, domain.ErrRecipientNotFound):
			return nil, err
		}
	}
	return uc.recipientRepo.FindByProviderMessageID(ctx, domain.ChannelSMS, event.MessageSID)
}

// TrackEmail applies an email event. Unknown event types are logged and ignored.
// Returns ErrRecipientNotFound when no recipient carries the email id.
func (uc *trackingUseCase) TrackEmail(ctx context.Context, event EmailEvent) error {
	if event.EmailID == "" {
		return ErrMissingMessageID
	}

	recipient, err := uc.recipientRepo.FindByProviderMessageID(ctx, domain.ChannelEmail, event.EmailID)
	if err != nil {
		return err
	}

	now := uc.now().UTC()
	switch event.Type {
	case EmailEventSent:
		if recipient.SentAt != nil {
			return nil
		}
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status:   domain.RecipientStatusSent,
			SentAt:   &now,
			Metadata: domain.Metadata{domain.MetadataEmailMessageID: event.EmailID},
		}, false)
	case EmailEventDelivered:
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status:      domain.RecipientStatusDelivered,
			DeliveredAt: &now,
		}, true)
	case EmailEventBounced, EmailEventComplained:
		msg := "Email bounced"
		if event.Type == EmailEventComplained {
			msg = "Email marked as spam"
		}
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status:       domain.RecipientStatusBounced,
			FailedAt:     &now,
			ErrorMessage: &msg,
		}, true)
	case EmailEventOpened:
		if recipient.OpenedAt != nil {
			return nil
		}
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status:   domain.RecipientStatusOpened,
			OpenedAt: &now,
		}, true)
	case EmailEventClicked:
		status := recipient.Status
		if status == "" {
			status = domain.RecipientStatusOpened
		}
		return uc.update(ctx, recipient, domain.RecipientUpdate{
			Status: status,
			Metadata: domain.Metadata{
				"clicked_at":  now.Format(time.RFC3339Nano),
				"clicked_url": event.Link,
			},
		}, false)
	default:
		uc.logger.Warn("unhandled email event",
			slog.String("type", event.Type),
			slog.String("email_id", event.EmailID),
		)
		return nil
	}
}

// update stores the recipient change and, when refresh is set, recomputes the
// communication's counters.
func (uc *trackingUseCase) update(
	ctx context.Context,
	recipient *domain.Recipient,
	update domain.RecipientUpdate,
	refresh bool,
) error {
	if err := uc.recipientRepo.UpdateStatus(ctx, recipient.ID, update); err != nil {
		return apperrors.Wrap(err, "failed to update recipient")
	}
	if !refresh {
		return nil
	}
	if err := uc.communicationRepo.RefreshStats(ctx, recipient.CommunicationID); err != nil {
		return apperrors.Wrap(err, "failed to refresh communication stats")
	}
	return nil
}
