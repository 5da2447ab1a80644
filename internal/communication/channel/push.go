package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
	"github.com/22club/communications/internal/retry"
)

const (
	defaultPushIcon  = "/icon-192x192.png"
	defaultPushBadge = "/badge-72x72.png"
	defaultPushTTL   = 24 * time.Hour
)

var (
	errTokenMissingKeys = apperrors.New(
		"Token is missing subscription keys (p256dh, auth). Ensure push subscription is complete.",
	)
	errTokenFormat = apperrors.New("Token format invalid. Expected PushSubscription object with endpoint and keys.")
)

// PushConfig configures the Web Push deliverer. Empty VAPID keys switch to
// simulated delivery.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is the VAPID contact, a mailto: address or an https: URL.
	Subject string
	TTL     time.Duration
	Retry   retry.Policy
}

// PushDeliverer sends Web Push notifications to every active subscription of a user.
type PushDeliverer struct {
	config PushConfig
	tokens PushTokenRepository
	client *http.Client
	logger *slog.Logger
}

// NewPushDeliverer creates a PushDeliverer.
func NewPushDeliverer(
	config PushConfig,
	tokens PushTokenRepository,
	client *http.Client,
	logger *slog.Logger,
) *PushDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.TTL <= 0 {
		config.TTL = defaultPushTTL
	}
	return &PushDeliverer{config: config, tokens: tokens, client: client, logger: logger}
}

// Channel returns domain.ChannelPush.
func (d *PushDeliverer) Channel() domain.Channel {
	return domain.ChannelPush
}

// AllFailed explains a run in which no recipient could be reached.
func (d *PushDeliverer) AllFailed(total int) string {
	return fmt.Sprintf("Tutti i %d destinatari sono falliti. Verifica i token push attivi.", total)
}

// PushPayload is the JSON document delivered to the service worker.
type PushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon"`
	Badge string         `json:"badge"`
	Data  map[string]any `json:"data"`
}

// BuildPushPayload builds the notification payload of a communication for one
// recipient. Icon, badge and extra data come from the communication metadata.
func BuildPushPayload(communication *domain.Communication, recipient *domain.Recipient) PushPayload {
	payload := PushPayload{
		Title: communication.Title,
		Body:  communication.Message,
		Icon:  communication.Metadata.String("icon"),
		Badge: communication.Metadata.String("badge"),
		Data:  map[string]any{},
	}
	if payload.Icon == "" {
		payload.Icon = defaultPushIcon
	}
	if payload.Badge == "" {
		payload.Badge = defaultPushBadge
	}
	if extra, ok := communication.Metadata["data"].(map[string]any); ok {
		for k, v := range extra {
			payload.Data[k] = v
		}
	}
	payload.Data["communication_id"] = communication.ID.String()
	payload.Data["recipient_id"] = recipient.ID.String()
	return payload
}

// Deliver pushes the communication to the recipient's active subscriptions.
// It succeeds when at least one subscription accepted the notification.
func (d *PushDeliverer) Deliver(
	ctx context.Context,
	communication *domain.Communication,
	recipient *domain.Recipient,
	_ domain.Contact,
) (domain.Metadata, error) {
	tokens, err := d.tokens.ListActivePushTokens(ctx, recipient.UserID)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrNoPushTokens
	}

	message, err := json.Marshal(BuildPushPayload(communication, recipient))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode push payload")
	}

	sent := 0
	var errs []string
	for _, token := range tokens {
		if err := d.sendToken(ctx, token, message); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		sent++
	}

	if sent == 0 {
		if len(errs) == 0 {
			return nil, ErrPushFailed
		}
		return nil, apperrors.New(strings.Join(errs, "; "))
	}

	return domain.Metadata{"tokens_sent": sent, "total_tokens": len(tokens)}, nil
}

func (d *PushDeliverer) sendToken(ctx context.Context, token domain.PushToken, message []byte) error {
	subscription, err := parseSubscription(token.Token)
	if err != nil {
		return err
	}

	if d.config.VAPIDPublicKey == "" || d.config.VAPIDPrivateKey == "" {
		d.logger.Info("push delivery simulated",
			slog.String("token_id", token.ID.String()),
			slog.String("user_id", token.UserID.String()),
		)
		return nil
	}

	options := &webpush.Options{
		HTTPClient:      d.client,
		Subscriber:      strings.TrimPrefix(d.config.Subject, "mailto:"),
		TTL:             int(d.config.TTL.Seconds()),
		Urgency:         webpush.UrgencyNormal,
		VAPIDPublicKey:  d.config.VAPIDPublicKey,
		VAPIDPrivateKey: d.config.VAPIDPrivateKey,
	}

	err = retry.Do(ctx, d.config.Retry, func(ctx context.Context) error {
		resp, err := webpush.SendNotificationWithContext(ctx, message, subscription, options)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &ProviderError{Provider: "webpush", Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil
	})

	var providerErr *ProviderError
	if apperrors.As(err, &providerErr) &&
		(providerErr.Status == http.StatusNotFound || providerErr.Status == http.StatusGone) {
		if deactivateErr := d.tokens.DeactivatePushToken(ctx, token.ID); deactivateErr != nil {
			d.logger.Error("failed to deactivate push token",
				slog.String("token_id", token.ID.String()),
				slog.Any("error", deactivateErr),
			)
		}
		return apperrors.Wrap(err, "Token invalid or expired")
	}
	return err
}

// parseSubscription decodes a stored PushSubscription JSON document.
func parseSubscription(token string) (*webpush.Subscription, error) {
	var s webpush.Subscription
	if err := json.Unmarshal([]byte(token), &s); err != nil || s.Endpoint == "" {
		return nil, errTokenFormat
	}
	if s.Keys.P256dh == "" || s.Keys.Auth == "" {
		return nil, errTokenMissingKeys
	}
	return &s, nil
}
