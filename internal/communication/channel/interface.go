// Package channel delivers a communication to its pending recipients on one
// delivery channel (push, email or sms).
package channel

import (
	"context"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
)

// CommunicationRepository reads communications and records their delivery progress.
type CommunicationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Communication, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) error
	RefreshStats(ctx context.Context, id uuid.UUID) error
}

// RecipientRepository reads and updates recipient rows.
type RecipientRepository interface {
	ListPending(ctx context.Context, communicationID uuid.UUID, channel domain.Channel) ([]*domain.Recipient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, update domain.RecipientUpdate) error
}

// DirectoryRepository reads the contact details and push subscriptions of users.
type DirectoryRepository interface {
	ContactsByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]domain.Contact, error)
	ListActivePushTokens(ctx context.Context, userID uuid.UUID) ([]domain.PushToken, error)
	DeactivatePushToken(ctx context.Context, id uuid.UUID) error
}

// PushTokenRepository reads and retires the push subscriptions of users.
type PushTokenRepository interface {
	ListActivePushTokens(ctx context.Context, userID uuid.UUID) ([]domain.PushToken, error)
	DeactivatePushToken(ctx context.Context, id uuid.UUID) error
}

// Deliverer performs the provider call for a single recipient.
//
// A returned error fails the recipient and its message is stored on the row.
// The returned metadata is merged into the recipient's metadata on success.
type Deliverer interface {
	Channel() domain.Channel
	Deliver(
		ctx context.Context,
		communication *domain.Communication,
		recipient *domain.Recipient,
		contact domain.Contact,
	) (domain.Metadata, error)
}

// Sender delivers communications on one channel.
type Sender interface {
	// Channel returns the channel this sender delivers on.
	Channel() domain.Channel

	// Send delivers the communication to every pending recipient of the channel
	// and returns the aggregate counts. Per-recipient failures are reported in
	// the result; a returned error means the run itself could not complete.
	Send(ctx context.Context, communicationID uuid.UUID) (domain.SendResult, error)

	// SendToRecipient delivers the communication to a single recipient row,
	// regardless of its current status. The result has a total of one.
	SendToRecipient(ctx context.Context, recipientID uuid.UUID) (domain.SendResult, error)
}
