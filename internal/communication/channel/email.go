package channel

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/22club/communications/internal/communication/domain"
	apperrors "github.com/22club/communications/internal/errors"
	"github.com/22club/communications/internal/retry"
)

// MetadataEmailTemplate is the communication metadata key holding an
// html/template source that replaces the default email layout.
const MetadataEmailTemplate = "email_template"

var defaultEmailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="it">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="margin:0;padding:0;background:#f4f4f5;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="padding:24px 0;">
<tr><td align="center">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;">
<tr><td style="padding:24px;background:#111827;color:#ffffff;font-size:20px;font-weight:bold;border-radius:8px 8px 0 0;">22Club</td></tr>
<tr><td style="padding:24px;">
<h1 style="margin:0 0 16px;font-size:22px;color:#111827;">{{.Title}}</h1>
{{range .Paragraphs}}<p style="margin:0 0 12px;font-size:15px;line-height:1.5;color:#374151;">{{.}}</p>
{{end}}</td></tr>
<tr><td style="padding:16px 24px;font-size:12px;color:#9ca3af;">Hai ricevuto questa email perché sei iscritto a 22Club.</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`))

// EmailData is the data passed to email templates.
type EmailData struct {
	Title      string
	Message    string
	Paragraphs []string
}

// RenderEmail renders the HTML body of a communication, using the template in
// its metadata when present.
func RenderEmail(communication *domain.Communication) (string, error) {
	tmpl := defaultEmailTemplate
	if src := communication.Metadata.String(MetadataEmailTemplate); src != "" {
		custom, err := template.New("custom").Parse(src)
		if err != nil {
			return "", apperrors.Wrap(err, "invalid email template")
		}
		tmpl = custom
	}

	data := EmailData{Title: communication.Title, Message: communication.Message}
	for _, line := range strings.Split(communication.Message, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			data.Paragraphs = append(data.Paragraphs, line)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", apperrors.Wrap(err, "failed to render email")
	}
	return buf.String(), nil
}

// EmailConfig configures the Resend backed email deliverer. An empty APIKey
// switches to simulated delivery.
type EmailConfig struct {
	APIKey  string
	From    string
	BaseURL string
	Retry   retry.Policy
}

// EmailDeliverer sends emails through the Resend SDK.
type EmailDeliverer struct {
	config EmailConfig
	client *http.Client
	logger *slog.Logger
}

// NewEmailDeliverer creates an EmailDeliverer.
func NewEmailDeliverer(config EmailConfig, client *http.Client, logger *slog.Logger) *EmailDeliverer {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EmailDeliverer{config: config, client: client, logger: logger}
}

// Channel returns domain.ChannelEmail.
func (d *EmailDeliverer) Channel() domain.Channel {
	return domain.ChannelEmail
}

// Deliver emails the communication to the contact's address.
func (d *EmailDeliverer) Deliver(
	ctx context.Context,
	communication *domain.Communication,
	recipient *domain.Recipient,
	contact domain.Contact,
) (domain.Metadata, error) {
	if contact.Email == "" {
		return nil, ErrNoEmailAddress
	}

	html, err := RenderEmail(communication)
	if err != nil {
		return nil, err
	}

	if d.config.APIKey == "" {
		id := simulatedID()
		d.logger.Info("email delivery simulated",
			slog.String("recipient_id", recipient.ID.String()),
			slog.String("email_id", id),
		)
		return domain.Metadata{domain.MetadataEmailMessageID: id, "simulated": true}, nil
	}

	request := &resend.SendEmailRequest{
		From:    d.config.From,
		To:      []string{contact.Email},
		Subject: communication.Title,
		Html:    html,
		Tags:    []resend.Tag{{Name: "recipient_id", Value: recipient.ID.String()}},
	}
	// Resend deduplicates retried attempts on this key.
	options := &resend.SendEmailOptions{IdempotencyKey: recipient.ID.String()}

	var sent *resend.SendEmailResponse
	err = retry.Do(ctx, d.config.Retry, func(ctx context.Context) error {
		sdk, rec, err := d.newResendClient(ctx)
		if err != nil {
			return err
		}
		sent, err = sdk.Emails.SendWithOptions(ctx, request, options)
		if err != nil {
			return providerFailure("resend", rec.status, strings.TrimPrefix(err.Error(), "[ERROR]: "), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sent == nil || sent.Id == "" {
		return nil, ErrEmailFailed
	}

	return domain.Metadata{domain.MetadataEmailMessageID: sent.Id}, nil
}

func (d *EmailDeliverer) newResendClient(ctx context.Context) (*resend.Client, *statusRecorder, error) {
	httpClient, rec := recordingClient(ctx, d.client, nil)
	sdk := resend.NewCustomClient(httpClient, d.config.APIKey)
	if d.config.BaseURL != "" {
		// Endpoint paths resolve against the base, which needs its trailing slash.
		base, err := url.Parse(strings.TrimRight(d.config.BaseURL, "/") + "/")
		if err != nil {
			return nil, nil, apperrors.Wrap(err, "invalid resend base url")
		}
		sdk.BaseURL = base
	}
	return sdk, rec, nil
}
