// Package retry classifies transient failures and computes exponential backoff delays.
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps any computed delay.
	DefaultMaxDelay = 30 * time.Second
)

// transientCodes are backend error codes known to be temporary.
var transientCodes = map[string]struct{}{
	"pgrst_001": {},
	"pgrst_002": {},
	"pgrst_003": {},
}

// transientMarkers are matched case-insensitively against error messages.
var transientMarkers = []string{
	"network",
	"fetch",
	"timeout",
	"connection",
	"econnrefused",
	"enotfound",
	"econnreset",
}

// StatusCoder is implemented by errors carrying an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Coder is implemented by errors carrying a backend error code.
type Coder interface {
	Code() string
}

// ShouldRetry reports whether err looks transient. Unknown errors are not retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		switch {
		case status >= 500 && status <= 599:
			return true
		case status >= 400 && status <= 499:
			return false
		}
	}

	var coder Coder
	if errors.As(err, &coder) {
		if _, ok := transientCodes[coder.Code()]; ok {
			return true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(strings.ToLower(urlErr.Error()), "failed") {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// Delay returns min(base * 2^attempt, maxDelay). Negative attempts count as zero.
func Delay(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		return 0
	}
	// base * 2^attempt overflows int64 well before attempt 63.
	if attempt >= 62 || float64(base)*math.Pow(2, float64(attempt)) >= float64(maxDelay) {
		return maxDelay
	}
	return base << attempt
}

// DefaultDelay is Delay with the default base and cap.
func DefaultDelay(attempt int) time.Duration {
	return Delay(attempt, DefaultBaseDelay, DefaultMaxDelay)
}

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first. Values below 1 mean 1.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Classify overrides ShouldRetry when set.
	Classify func(error) bool
}

// DefaultPolicy makes three attempts with the default backoff.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	classify := p.Classify
	if classify == nil {
		classify = ShouldRetry
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 || !classify(err) {
			return err
		}

		timer := time.NewTimer(Delay(attempt, p.BaseDelay, p.MaxDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
