package domain

import (
	"github.com/22club/communications/internal/errors"
)

// Communication-specific error definitions.
var (
	// ErrCommunicationNotFound indicates the communication does not exist.
	ErrCommunicationNotFound = errors.WithMessage(errors.ErrNotFound, "Communication not found")

	// ErrRecipientNotFound indicates the recipient does not exist.
	ErrRecipientNotFound = errors.WithMessage(errors.ErrNotFound, "Recipient not found")

	// ErrInvalidStatus indicates the communication cannot be sent from its current status.
	ErrInvalidStatus = errors.WithMessage(
		errors.ErrInvalidInput,
		"Communication is not in draft, scheduled, sending, or failed status",
	)

	// ErrCannotSchedule indicates the communication cannot be scheduled from its current status.
	ErrCannotSchedule = errors.WithMessage(
		errors.ErrInvalidInput,
		"Communication can only be scheduled from draft or failed status",
	)

	// ErrScheduleInPast indicates a delivery time that is not in the future.
	ErrScheduleInPast = errors.WithMessage(errors.ErrInvalidInput, "Scheduled time must be in the future")

	// ErrNoRecipients indicates the recipient filter matched nobody.
	ErrNoRecipients = errors.WithMessage(
		errors.ErrInvalidInput,
		"Nessun destinatario valido trovato. Verifica che ci siano utenti che corrispondono ai criteri selezionati.",
	)

	// ErrSendTimeout indicates a dispatch exceeded its time budget.
	ErrSendTimeout = errors.WithMessage(errors.ErrTimeout, "Invio interrotto per timeout")

	// ErrChannelMismatch indicates a channel sender was asked to deliver a communication of another type.
	ErrChannelMismatch = errors.WithMessage(errors.ErrInvalidInput, "Communication type does not match channel")

	// ErrUnknownType indicates a communication with an unsupported type.
	ErrUnknownType = errors.WithMessage(errors.ErrInvalidInput, "Unknown communication type")
)
