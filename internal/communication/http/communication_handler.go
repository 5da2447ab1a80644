// Package http provides HTTP handlers for dispatching communications and
// receiving delivery events from the providers.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/communication/http/dto"
	"github.com/22club/communications/internal/communication/usecase"
	apperrors "github.com/22club/communications/internal/errors"
	"github.com/22club/communications/internal/httputil"
	customValidation "github.com/22club/communications/internal/validation"
)

const (
	defaultRecipientsLimit = 100
	maxRecipientsLimit     = 1000
)

// CommunicationHandler handles staff requests for communications.
type CommunicationHandler struct {
	dispatchUseCase  usecase.DispatchUseCase
	recipientUseCase usecase.RecipientUseCase
	scheduledUseCase usecase.ScheduledUseCase
	logger           *slog.Logger
}

// NewCommunicationHandler creates a new communication handler with required dependencies.
func NewCommunicationHandler(
	dispatchUseCase usecase.DispatchUseCase,
	recipientUseCase usecase.RecipientUseCase,
	scheduledUseCase usecase.ScheduledUseCase,
	logger *slog.Logger,
) *CommunicationHandler {
	return &CommunicationHandler{
		dispatchUseCase:  dispatchUseCase,
		recipientUseCase: recipientUseCase,
		scheduledUseCase: scheduledUseCase,
		logger:           logger,
	}
}

// SendHandler dispatches a communication on its channels.
// POST /v1/communications/send
// Returns 200 with the delivery counts, also when every recipient failed.
func (h *CommunicationHandler) SendHandler(c *gin.Context) {
	var req dto.SendCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.dispatchUseCase.Send(c.Request.Context(), req.ID())
	if err != nil {
		h.handleSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapSendResultToResponse(result))
}

// handleSendError writes the counters-shaped bodies of the failures that
// happen after validation. Other errors use the generic mapping.
func (h *CommunicationHandler) handleSendError(c *gin.Context, err error) {
	switch {
	case apperrors.Is(err, domain.ErrNoRecipients):
		msg, _ := apperrors.PublicMessage(domain.ErrNoRecipients)
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewSendFailure(msg, dto.MessageNoRecipients))
	case apperrors.Is(err, domain.ErrSendTimeout):
		h.logger.Warn("communication send timed out", slog.Any("error", err))
		c.AbortWithStatusJSON(http.StatusRequestTimeout, dto.NewSendFailure(err.Error(), dto.MessageTimeout))
	case httputil.StatusForError(err) == http.StatusInternalServerError:
		h.logger.Error("error sending communication", slog.Any("error", err))
		c.AbortWithStatusJSON(
			http.StatusInternalServerError,
			dto.NewSendFailure("Internal server error", dto.MessageSendError),
		)
	default:
		httputil.HandleErrorGin(c, err, h.logger)
	}
}

// ResendRecipientHandler resends a communication to a single recipient.
// POST /v1/communications/recipients/:id/resend
func (h *CommunicationHandler) ResendRecipientHandler(c *gin.Context) {
	recipientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid recipient id"), h.logger)
		return
	}

	result, err := h.dispatchUseCase.SendToRecipient(c.Request.Context(), recipientID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSendResultToResponse(result))
}

// ListRecipientsHandler lists the recipients of a communication, newest first.
// GET /v1/communications/recipients?communication_id=...&offset=0&limit=100
func (h *CommunicationHandler) ListRecipientsHandler(c *gin.Context) {
	rawID := c.Query("communication_id")
	if rawID == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("communication_id is required"), h.logger)
		return
	}
	communicationID, err := uuid.Parse(rawID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("communication_id must be a valid UUID"), h.logger)
		return
	}

	page, err := httputil.ParsePagination(c, defaultRecipientsLimit, maxRecipientsLimit)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	recipients, err := h.recipientUseCase.List(c.Request.Context(), communicationID, page.Offset, page.Limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecipientsToListResponse(recipients))
}

// CountRecipientsHandler returns how many active users a filter selects.
// POST /v1/communications/recipients/count
func (h *CommunicationHandler) CountRecipientsHandler(c *gin.Context) {
	var req dto.RecipientCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	count, err := h.recipientUseCase.Count(c.Request.Context(), req.Filter())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RecipientCountResponse{Count: count})
}

// ScheduleHandler plans a communication for later delivery.
// POST /v1/communications/:id/schedule
func (h *CommunicationHandler) ScheduleHandler(c *gin.Context) {
	communicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid communication id"), h.logger)
		return
	}

	var req dto.ScheduleCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.scheduledUseCase.Schedule(c.Request.Context(), communicationID, req.ScheduledFor); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ScheduleResponse{
		ID:           communicationID.String(),
		Status:       string(domain.StatusScheduled),
		ScheduledFor: req.ScheduledFor.UTC(),
	})
}
