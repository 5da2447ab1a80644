// Package usecase drives communications through the dispatch pipeline: it
// validates and resolves them, sends them on their channels under a time
// budget, processes scheduled ones and tracks provider delivery events.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
)

// CommunicationRepository defines the communication persistence used by the use cases.
type CommunicationRepository interface {
	// Get retrieves a communication. Returns ErrCommunicationNotFound if missing.
	Get(ctx context.Context, id uuid.UUID) (*domain.Communication, error)
	// UpdateStatus applies a typed status change.
	UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) error
	// TransitionStatus moves the communication to "to" only when it is in "from".
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (bool, error)
	// RefreshStats recomputes the aggregate counters from recipient rows.
	RefreshStats(ctx context.Context, id uuid.UUID) error
	// ListDueScheduled returns scheduled communications due at or before now, oldest first.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Communication, error)
	// Schedule sets status scheduled and the delivery time of a draft or failed communication.
	Schedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// RecipientRepository defines the recipient persistence used by the use cases.
type RecipientRepository interface {
	CountByCommunication(ctx context.Context, communicationID uuid.UUID) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error)
	FindByProviderMessageID(ctx context.Context, channel domain.Channel, messageID string) (*domain.Recipient, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, update domain.RecipientUpdate) error
	ListByCommunication(
		ctx context.Context,
		communicationID uuid.UUID,
		offset, limit int,
	) ([]*domain.RecipientDetail, error)
}

// RecipientResolver creates recipient rows and counts audiences.
type RecipientResolver interface {
	EnsureRecipients(ctx context.Context, communication *domain.Communication) (int, error)
	Count(ctx context.Context, filter domain.RecipientFilter) (int, error)
}

// ChannelSender delivers communications on one channel.
type ChannelSender interface {
	Channel() domain.Channel
	Send(ctx context.Context, communicationID uuid.UUID) (domain.SendResult, error)
	SendToRecipient(ctx context.Context, recipientID uuid.UUID) (domain.SendResult, error)
}

// DispatchUseCase sends communications.
type DispatchUseCase interface {
	// Send drives a communication from ready to a terminal status. It returns
	// ErrCommunicationNotFound, ErrInvalidStatus, ErrNoRecipients or a
	// *domain.TimeoutError for the expected failures; a result with
	// Success false means every recipient failed.
	Send(ctx context.Context, communicationID uuid.UUID) (*domain.SendResult, error)

	// SendToRecipient resends the communication to a single recipient row.
	SendToRecipient(ctx context.Context, recipientID uuid.UUID) (*domain.SendResult, error)
}

// RecipientUseCase answers audience questions for staff.
type RecipientUseCase interface {
	// List returns a page of a communication's recipients with their profile details.
	List(ctx context.Context, communicationID uuid.UUID, offset, limit int) ([]*domain.RecipientDetail, error)
	// Count returns the number of active users a filter selects.
	Count(ctx context.Context, filter domain.RecipientFilter) (int, error)
}

// ScheduledUseCase delivers communications whose scheduled time has come.
type ScheduledUseCase interface {
	// Start runs ProcessScheduled on every tick until ctx is cancelled.
	Start(ctx context.Context) error
	// ProcessScheduled dispatches every due scheduled communication once.
	ProcessScheduled(ctx context.Context) (*domain.ScheduledRun, error)
	// Schedule plans a draft or failed communication for delivery at the given time.
	Schedule(ctx context.Context, communicationID uuid.UUID, at time.Time) error
}

// TrackingUseCase applies provider delivery events to recipient rows.
type TrackingUseCase interface {
	// TrackSMS applies a Twilio message status callback.
	TrackSMS(ctx context.Context, event SMSStatusEvent) error
	// TrackEmail applies a Resend webhook event.
	TrackEmail(ctx context.Context, event EmailEvent) error
}
