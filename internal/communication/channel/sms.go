package channel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
	"github.com/22club/communications/internal/retry"
)

const (
	// MetadataSMSTemplate is the communication metadata key holding an sms
	// body in which "{{message}}" is replaced by the communication message.
	MetadataSMSTemplate = "sms_template"

	smsMaxLength = 160
)

// RenderSMS builds the sms body of a communication. Without a template the
// trimmed message is used, cut to a single 160 character segment.
func RenderSMS(communication *domain.Communication) string {
	if tmpl := communication.Metadata.String(MetadataSMSTemplate); tmpl != "" {
		return strings.Replace(tmpl, "{{message}}", communication.Message, 1)
	}

	msg := strings.TrimSpace(communication.Message)
	runes := []rune(msg)
	if len(runes) <= smsMaxLength {
		return msg
	}
	return string(runes[:smsMaxLength-3]) + "..."
}

// SMSConfig configures the Twilio backed sms deliverer. An empty AccountSID or
// AuthToken switches to simulated delivery.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	// StatusCallbackURL receives delivery status updates; the recipient id is
	// appended as the recipient_id query parameter. Empty disables callbacks.
	StatusCallbackURL string
	Retry             retry.Policy
}

// SMSDeliverer sends sms through the Twilio SDK.
type SMSDeliverer struct {
	config SMSConfig
	client *http.Client
	logger *slog.Logger
}

// NewSMSDeliverer creates an SMSDeliverer.
func NewSMSDeliverer(config SMSConfig, client *http.Client, logger *slog.Logger) *SMSDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SMSDeliverer{config: config, client: client, logger: logger}
}

// Channel returns domain.ChannelSMS.
func (d *SMSDeliverer) Channel() domain.Channel {
	return domain.ChannelSMS
}

// Deliver texts the communication to the contact's phone number.
func (d *SMSDeliverer) Deliver(
	ctx context.Context,
	communication *domain.Communication,
	recipient *domain.Recipient,
	contact domain.Contact,
) (domain.Metadata, error) {
	phone := strings.TrimSpace(contact.Phone)
	if phone == "" {
		return nil, ErrNoPhoneNumber
	}
	if !strings.HasPrefix(phone, "+") {
		return nil, ErrInvalidPhoneNumber
	}

	body := RenderSMS(communication)

	if d.config.AccountSID == "" || d.config.AuthToken == "" {
		id := simulatedID()
		d.logger.Info("sms delivery simulated",
			slog.String("recipient_id", recipient.ID.String()),
			slog.String("message_id", id),
		)
		return domain.Metadata{domain.MetadataSMSMessageID: id, "simulated": true}, nil
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(d.config.From)
	params.SetBody(body)
	if d.config.StatusCallbackURL != "" {
		params.SetStatusCallback(d.config.StatusCallbackURL + "?recipient_id=" + url.QueryEscape(recipient.ID.String()))
	}

	var sid string
	err := retry.Do(ctx, d.config.Retry, func(ctx context.Context) error {
		api, rec, err := d.newTwilioAPI(ctx)
		if err != nil {
			return err
		}
		msg, err := api.CreateMessage(params)
		if err != nil {
			return twilioFailure(rec.status, err)
		}
		if msg.Sid != nil {
			sid = *msg.Sid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sid == "" {
		return nil, ErrSMSFailed
	}

	return domain.Metadata{domain.MetadataSMSMessageID: sid}, nil
}

func (d *SMSDeliverer) newTwilioAPI(ctx context.Context) (*twilioapi.ApiService, *statusRecorder, error) {
	var rewrite *url.URL
	if d.config.BaseURL != "" {
		u, err := url.Parse(d.config.BaseURL)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, "invalid twilio base url")
		}
		rewrite = u
	}
	httpClient, rec := recordingClient(ctx, d.client, rewrite)

	rest := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(d.config.AccountSID, d.config.AuthToken),
		HTTPClient:  httpClient,
	}
	rest.SetAccountSid(d.config.AccountSID)
	return twilioapi.NewApiServiceWithClient(rest), rec, nil
}

// twilioFailure prefers the status and message of a Twilio error body over
// the recorded response status.
func twilioFailure(status int, err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status != 0 {
			status = restErr.Status
		}
		return providerFailure("twilio", status, restErr.Message, err)
	}
	var v1Err *twilioclient.RestErrorV1
	if errors.As(err, &v1Err) {
		return providerFailure("twilio", v1Err.GetHttpStatusCode(), v1Err.Message, err)
	}
	return providerFailure("twilio", status, err.Error(), err)
}
