// Package resolver expands a communication's recipient filter into per-channel
// recipient rows and counts the audience a filter selects.
package resolver

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
)

// DirectoryRepository reads the active users a filter selects.
type DirectoryRepository interface {
	ListActiveContacts(ctx context.Context, filter domain.RecipientFilter) ([]domain.Contact, error)
	CountActiveContacts(ctx context.Context, filter domain.RecipientFilter) (int, error)
}

// RecipientRepository persists recipient rows.
type RecipientRepository interface {
	CountByCommunication(ctx context.Context, communicationID uuid.UUID) (int, error)
	CreateBatch(ctx context.Context, recipients []domain.NewRecipient) (int, error)
}

// CommunicationRepository records the resolved audience size.
type CommunicationRepository interface {
	SetTotalRecipients(ctx context.Context, id uuid.UUID, total int) error
}

// CountCache stores audience counts keyed by a normalised filter.
type CountCache interface {
	Get(ctx context.Context, key string) (int, bool, error)
	Set(ctx context.Context, key string, count int, ttl time.Duration) error
}

// Resolver turns recipient filters into recipient rows.
type Resolver interface {
	// EnsureRecipients creates the recipient rows of a communication unless some
	// already exist, and returns the number of rows the communication has.
	EnsureRecipients(ctx context.Context, communication *domain.Communication) (int, error)
	// Count returns the number of active users the filter selects.
	Count(ctx context.Context, filter domain.RecipientFilter) (int, error)
}
