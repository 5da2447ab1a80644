package retry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type statusError struct {
	status int
	msg    string
}

func (e statusError) Error() string   { return e.msg }
func (e statusError) StatusCode() int { return e.status }

type codeError struct {
	code string
	msg  string
}

func (e codeError) Error() string { return e.msg }
func (e codeError) Code() string  { return e.code }

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "network request failed", err: errors.New("Network request failed"), expected: true},
		{name: "failed to fetch", err: errors.New("Failed to fetch"), expected: true},
		{name: "request timeout", err: errors.New("Request timeout"), expected: true},
		{name: "econnrefused", err: errors.New("ECONNREFUSED"), expected: true},
		{name: "econnreset", err: errors.New("ECONNRESET"), expected: true},
		{name: "enotfound", err: errors.New("ENOTFOUND"), expected: true},
		{name: "connection reset text", err: errors.New("read: connection reset by peer"), expected: true},
		{
			name:     "transport failure",
			err:      &url.Error{Op: "Post", URL: "https://api.resend.com/emails", Err: errors.New("dial failed")},
			expected: true,
		},
		{name: "syscall econnrefused", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), expected: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: true},
		{name: "500", err: statusError{500, "Internal Server Error"}, expected: true},
		{name: "502", err: statusError{502, "Bad Gateway"}, expected: true},
		{name: "503", err: statusError{503, "Service Unavailable"}, expected: true},
		{name: "400", err: statusError{400, "Bad Request"}, expected: false},
		{name: "401", err: statusError{401, "Unauthorized"}, expected: false},
		{name: "403", err: statusError{403, "Forbidden"}, expected: false},
		{name: "404", err: statusError{404, "Not Found"}, expected: false},
		{name: "422", err: statusError{422, "Unprocessable Entity"}, expected: false},
		{name: "4xx wins over message", err: statusError{408, "Request timeout"}, expected: false},
		{name: "wrapped 5xx", err: fmt.Errorf("send: %w", statusError{503, "unavailable"}), expected: true},
		{name: "pgrst_001", err: codeError{"pgrst_001", "Connection error"}, expected: true},
		{name: "pgrst_002", err: codeError{"pgrst_002", "Timeout"}, expected: true},
		{name: "pgrst_003", err: codeError{"pgrst_003", "Network error"}, expected: true},
		{name: "unknown code", err: codeError{"23505", "duplicate key"}, expected: false},
		{name: "unknown error", err: errors.New("Unknown error"), expected: false},
		{name: "generic error", err: errors.New("Some error"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldRetry(tt.err))
		})
	}
}

func TestShouldRetry_StatusRanges(t *testing.T) {
	for s := 500; s < 600; s++ {
		assert.True(t, ShouldRetry(statusError{s, "server"}), "status %d", s)
	}
	for s := 400; s < 500; s++ {
		assert.False(t, ShouldRetry(statusError{s, "network"}), "status %d", s)
	}
}

func TestDefaultDelay(t *testing.T) {
	assert.Equal(t, 1000*time.Millisecond, DefaultDelay(0))
	assert.Equal(t, 2000*time.Millisecond, DefaultDelay(1))
	assert.Equal(t, 4000*time.Millisecond, DefaultDelay(2))
	assert.Equal(t, 8000*time.Millisecond, DefaultDelay(3))
	assert.Equal(t, 16000*time.Millisecond, DefaultDelay(4))
	assert.Equal(t, 30000*time.Millisecond, DefaultDelay(5))
	assert.Equal(t, 30000*time.Millisecond, DefaultDelay(10))
	assert.Equal(t, 30000*time.Millisecond, DefaultDelay(100))
	assert.Equal(t, 1000*time.Millisecond, DefaultDelay(-1))

	for n := 0; n < 64; n++ {
		expected := DefaultMaxDelay
		if n < 5 {
			expected = DefaultBaseDelay * time.Duration(1<<n)
		}
		assert.Equal(t, expected, DefaultDelay(n), "attempt %d", n)
	}
}

func TestDelay(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Delay(0, 500*time.Millisecond, 5*time.Second))
	assert.Equal(t, 4*time.Second, Delay(3, 500*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, Delay(4, 500*time.Millisecond, 5*time.Second))
	assert.Equal(t, time.Duration(0), Delay(3, 0, 5*time.Second))
}

func TestDo(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("Success_FirstAttempt", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), policy, func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Success_AfterTransientFailures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), policy, func(context.Context) error {
			calls++
			if calls < 3 {
				return statusError{503, "unavailable"}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Error_NotRetryable", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), policy, func(context.Context) error {
			calls++
			return statusError{400, "bad request"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Error_AttemptsExhausted", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), policy, func(context.Context) error {
			calls++
			return errors.New("network down")
		})
		assert.EqualError(t, err, "network down")
		assert.Equal(t, 3, calls)
	})

	t.Run("Error_ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
		calls := 0
		err := Do(ctx, slow, func(context.Context) error {
			calls++
			cancel()
			return errors.New("timeout")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("Success_CustomClassifier", func(t *testing.T) {
		calls := 0
		p := policy
		p.Classify = func(error) bool { return true }
		err := Do(context.Background(), p, func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("anything")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}
