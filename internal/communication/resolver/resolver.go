package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/database"
	apperrors "github.com/22club/communications/internal/errors"
)

// resolver implements Resolver.
type resolver struct {
	txManager         database.TxManager
	directoryRepo     DirectoryRepository
	recipientRepo     RecipientRepository
	communicationRepo CommunicationRepository
	cache             CountCache
	cacheTTL          time.Duration
	logger            *slog.Logger
}

// NewResolver creates a Resolver. A nil cache disables count caching.
func NewResolver(
	txManager database.TxManager,
	directoryRepo DirectoryRepository,
	recipientRepo RecipientRepository,
	communicationRepo CommunicationRepository,
	cache CountCache,
	cacheTTL time.Duration,
	logger *slog.Logger,
) Resolver {
	return &resolver{
		txManager:         txManager,
		directoryRepo:     directoryRepo,
		recipientRepo:     recipientRepo,
		communicationRepo: communicationRepo,
		cache:             cache,
		cacheTTL:          cacheTTL,
		logger:            logger,
	}
}

// EnsureRecipients creates the recipient rows of a communication in a single
// transaction. Communications that already have rows are left untouched.
func (r *resolver) EnsureRecipients(ctx context.Context, communication *domain.Communication) (int, error) {
	var total int

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.recipientRepo.CountByCommunication(ctx, communication.ID)
		if err != nil {
			return err
		}
		if existing > 0 {
			total = existing
			return nil
		}

		contacts, err := r.directoryRepo.ListActiveContacts(ctx, communication.RecipientFilter)
		if err != nil {
			return err
		}

		rows := RecipientRows(communication.ID, contacts, communication.Type)
		if len(rows) == 0 {
			r.warn("no recipients matched communication filter",
				slog.String("communication_id", communication.ID.String()),
				slog.Int("contacts", len(contacts)),
			)
			return r.communicationRepo.SetTotalRecipients(ctx, communication.ID, 0)
		}

		if _, err := r.recipientRepo.CreateBatch(ctx, rows); err != nil {
			return err
		}

		// Rows inserted concurrently by another dispatch are skipped by the
		// unique key, so the stored count is authoritative.
		if total, err = r.recipientRepo.CountByCommunication(ctx, communication.ID); err != nil {
			return err
		}
		return r.communicationRepo.SetTotalRecipients(ctx, communication.ID, total)
	})
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to ensure recipients")
	}

	return total, nil
}

// Count returns the audience size of a filter, served from the cache when possible.
// Cache failures are logged and fall through to the database.
func (r *resolver) Count(ctx context.Context, filter domain.RecipientFilter) (int, error) {
	if filter.IsEmpty() {
		return 0, nil
	}

	key := filter.CacheKey()
	if r.cache != nil {
		count, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.warn("recipient count cache read failed", slog.Any("error", err))
		} else if ok {
			return count, nil
		}
	}

	count, err := r.directoryRepo.CountActiveContacts(ctx, filter)
	if err != nil {
		return 0, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, count, r.cacheTTL); err != nil {
			r.warn("recipient count cache write failed", slog.Any("error", err))
		}
	}
	return count, nil
}

func (r *resolver) warn(msg string, attrs ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, attrs...)
	}
}

// RecipientRows expands contacts into one row per deliverable channel.
//
// For type all a user gets a row for each channel they can be reached on. For
// push every user gets a row so that users without a token are reported as
// failed deliveries. Email and sms rows require an address or phone number.
func RecipientRows(communicationID uuid.UUID, contacts []domain.Contact, typ domain.Type) []domain.NewRecipient {
	rows := make([]domain.NewRecipient, 0, len(contacts))
	add := func(userID uuid.UUID, ch domain.Channel) {
		rows = append(rows, domain.NewRecipient{
			ID:              uuid.New(),
			CommunicationID: communicationID,
			UserID:          userID,
			RecipientType:   ch,
		})
	}

	for _, c := range contacts {
		switch typ {
		case domain.TypeAll:
			if c.HasPushToken {
				add(c.UserID, domain.ChannelPush)
			}
			if c.Email != "" {
				add(c.UserID, domain.ChannelEmail)
			}
			if c.Phone != "" {
				add(c.UserID, domain.ChannelSMS)
			}
		case domain.TypePush:
			add(c.UserID, domain.ChannelPush)
		case domain.TypeEmail:
			if c.Email != "" {
				add(c.UserID, domain.ChannelEmail)
			}
		case domain.TypeSMS:
			if c.Phone != "" {
				add(c.UserID, domain.ChannelSMS)
			}
		}
	}
	return rows
}
