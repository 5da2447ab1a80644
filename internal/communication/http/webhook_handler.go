package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/22club/communications/internal/communication/domain"
	"github.com/22club/communications/internal/communication/http/dto"
	"github.com/22club/communications/internal/communication/usecase"
	apperrors "github.com/22club/communications/internal/errors"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookConfig holds provider webhook verification settings.
type WebhookConfig struct {
	// PublicURL is the externally visible base URL Twilio signs callbacks against.
	PublicURL string
	// TwilioSecret verifies X-Twilio-Signature when set.
	TwilioSecret string
	// ResendSecret verifies the svix signature headers when set.
	ResendSecret string
}

// WebhookHandler receives delivery events from the sms and email providers.
// Responses are plain text; unknown recipients are acknowledged with 200 so
// the providers stop retrying.
type WebhookHandler struct {
	trackingUseCase usecase.TrackingUseCase
	config          WebhookConfig
	twilioValidator *twilioclient.RequestValidator
	resendWebhooks  resend.WebhooksSvc
	logger          *slog.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(
	trackingUseCase usecase.TrackingUseCase,
	config WebhookConfig,
	logger *slog.Logger,
) *WebhookHandler {
	h := &WebhookHandler{
		trackingUseCase: trackingUseCase,
		config:          config,
		resendWebhooks:  resend.NewClient("").Webhooks,
		logger:          logger,
	}
	if config.TwilioSecret != "" {
		v := twilioclient.NewRequestValidator(config.TwilioSecret)
		h.twilioValidator = &v
	}
	return h
}

// SMSHandler applies a Twilio message status callback.
// POST /v1/webhooks/sms?recipient_id=...
func (h *WebhookHandler) SMSHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	if h.twilioValidator != nil {
		callbackURL := strings.TrimRight(h.config.PublicURL, "/") + c.Request.URL.RequestURI()
		if !h.twilioValidator.ValidateBody(callbackURL, body, c.GetHeader("X-Twilio-Signature")) {
			h.logger.Warn("sms webhook rejected: invalid signature")
			c.String(http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	event := usecase.SMSStatusEvent{
		MessageSID: c.PostForm("MessageSid"),
		Status:     c.PostForm("MessageStatus"),
	}
	if event.MessageSID == "" {
		h.logger.Warn("sms webhook: missing MessageSid")
		c.String(http.StatusBadRequest, "Missing MessageSid")
		return
	}
	if raw := c.Query("recipient_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			event.RecipientID = &id
		}
	}

	h.track(c, h.trackingUseCase.TrackSMS(c.Request.Context(), event),
		slog.String("message_sid", event.MessageSID))
}

// EmailHandler applies a Resend webhook event.
// POST /v1/webhooks/email
func (h *WebhookHandler) EmailHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	if h.config.ResendSecret != "" {
		err := h.resendWebhooks.Verify(&resend.VerifyWebhookOptions{
			Payload: string(body),
			Headers: resend.WebhookHeaders{
				Id:        c.GetHeader("svix-id"),
				Timestamp: c.GetHeader("svix-timestamp"),
				Signature: c.GetHeader("svix-signature"),
			},
			WebhookSecret: h.config.ResendSecret,
		})
		if err != nil {
			h.logger.Warn("email webhook rejected", slog.Any("error", err))
			c.String(http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	var payload dto.ResendEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		c.String(http.StatusBadRequest, "Invalid JSON")
		return
	}

	event := usecase.EmailEvent{
		Type:    payload.Type,
		EmailID: payload.MessageID(),
		Link:    payload.ClickedLink(),
	}
	if event.EmailID == "" {
		h.logger.Warn("email webhook: missing email_id")
		c.String(http.StatusBadRequest, "Missing email_id")
		return
	}

	h.track(c, h.trackingUseCase.TrackEmail(c.Request.Context(), event),
		slog.String("email_id", event.EmailID))
}

func (h *WebhookHandler) track(c *gin.Context, err error, attr slog.Attr) {
	switch {
	case err == nil:
		c.String(http.StatusOK, "OK")
	case apperrors.Is(err, domain.ErrRecipientNotFound):
		h.logger.Warn("webhook: recipient not found", attr)
		c.String(http.StatusOK, "Recipient not found")
	case apperrors.Is(err, usecase.ErrMissingMessageID):
		c.String(http.StatusBadRequest, "Missing message id")
	default:
		h.logger.Error("error processing webhook", attr, slog.Any("error", err))
		c.String(http.StatusInternalServerError, "Internal server error")
	}
}
