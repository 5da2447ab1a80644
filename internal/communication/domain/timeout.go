package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	minSendTimeout = 2 * time.Minute
	maxSendTimeout = 10 * time.Minute
)

// SendTimeout sizes the dispatch deadline: one minute per hundred recipients,
// clamped to [2m, 10m].
func SendTimeout(recipients int) time.Duration {
	d := time.Duration(recipients) * time.Minute / 100
	return min(max(d, minSendTimeout), maxSendTimeout)
}

// TimeoutError is returned when a dispatch does not finish within its budget.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Send timeout: operation exceeded %d minutes", int(math.Round(e.Timeout.Minutes())))
}

func (e *TimeoutError) Unwrap() error { return ErrSendTimeout }
