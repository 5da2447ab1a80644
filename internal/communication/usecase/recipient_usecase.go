package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
)

// recipientUseCase implements RecipientUseCase.
type recipientUseCase struct {
	communicationRepo CommunicationRepository
	recipientRepo     RecipientRepository
	resolver          RecipientResolver
}

// NewRecipientUseCase creates a RecipientUseCase.
func NewRecipientUseCase(
	communicationRepo CommunicationRepository,
	recipientRepo RecipientRepository,
	resolver RecipientResolver,
) RecipientUseCase {
	return &recipientUseCase{
		communicationRepo: communicationRepo,
		recipientRepo:     recipientRepo,
		resolver:          resolver,
	}
}

// List returns a page of recipients. Returns ErrCommunicationNotFound for an unknown communication.
func (uc *recipientUseCase) List(
	ctx context.Context,
	communicationID uuid.UUID,
	offset, limit int,
) ([]*domain.RecipientDetail, error) {
	if _, err := uc.communicationRepo.Get(ctx, communicationID); err != nil {
		return nil, err
	}

	recipients, err := uc.recipientRepo.ListByCommunication(ctx, communicationID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list recipients")
	}
	return recipients, nil
}

// Count returns the audience size of a filter.
func (uc *recipientUseCase) Count(ctx context.Context, filter domain.RecipientFilter) (int, error) {
	count, err := uc.resolver.Count(ctx, filter)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count recipients")
	}
	return count, nil
}
