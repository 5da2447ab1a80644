package channel

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/22club/communications/internal/errors"
)

// Delivery failures stored verbatim on recipient rows.
var (
	ErrNoEmailAddress     = apperrors.New("No email address")
	ErrEmailFailed        = apperrors.New("Email sending failed")
	ErrNoPhoneNumber      = apperrors.New("No phone number")
	ErrInvalidPhoneNumber = apperrors.New("Invalid phone number format (must start with +)")
	ErrSMSFailed          = apperrors.New("SMS sending failed")
	ErrNoPushTokens       = apperrors.New("No active push tokens")
	ErrPushFailed         = apperrors.New("Push sending failed")
)

// ProviderError is an error status returned by a delivery provider SDK. Its
// status code drives retry classification.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
}

// StatusCode returns the provider's HTTP status code.
func (e *ProviderError) StatusCode() int {
	return e.Status
}

// statusRecorder is the transport of a single provider call. It remembers the
// last response status, which SDK errors do not always carry, binds requests
// to ctx and, when rewrite is set, sends them to that scheme and host.
type statusRecorder struct {
	ctx     context.Context
	base    http.RoundTripper
	rewrite *url.URL
	status  int
}

func (r *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(r.ctx)
	if r.rewrite != nil {
		req.URL.Scheme = r.rewrite.Scheme
		req.URL.Host = r.rewrite.Host
		req.Host = ""
	}
	resp, err := r.base.RoundTrip(req)
	if resp != nil {
		r.status = resp.StatusCode
	}
	return resp, err
}

// recordingClient returns a copy of client whose requests go through a new
// statusRecorder.
func recordingClient(ctx context.Context, client *http.Client, rewrite *url.URL) (*http.Client, *statusRecorder) {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	rec := &statusRecorder{ctx: ctx, base: base, rewrite: rewrite}
	c := *client
	c.Transport = rec
	return &c, rec
}

// providerFailure turns an SDK error into a *ProviderError when the provider
// answered with an error status. Transport failures pass through unchanged.
func providerFailure(provider string, status int, message string, err error) error {
	if err == nil || status < 400 {
		return err
	}
	return &ProviderError{Provider: provider, Status: status, Message: message}
}

// simulatedID returns a message id for deliveries made without a configured
// provider, in the form "sim-<unix millis>-<random>".
func simulatedID() string {
	b := make([]byte, 5)
	_, _ = rand.Read(b)
	return fmt.Sprintf("sim-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
