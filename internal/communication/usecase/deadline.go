package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/22club/communications/internal/communication/domain"
)

type outcome[T any] struct {
	value T
	err   error
}

// RaceDeadline runs fn and waits for it for at most timeout. When the deadline
// wins it returns a *domain.TimeoutError; fn is not cancelled and keeps running
// in the background. fn receives a context that carries ctx's values but not
// its cancellation, so neither the deadline nor the caller going away stops it.
// A panic in fn is returned as an error.
func RaceDeadline[T any](
	ctx context.Context,
	timeout time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	return raceUntil(ctx, timeout, timer.C, fn)
}

// raceUntil is RaceDeadline with the deadline delivered on expired. timeout is
// only reported in the error.
func raceUntil[T any](
	ctx context.Context,
	timeout time.Duration,
	expired <-chan time.Time,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	done := make(chan outcome[T], 1)
	detached := context.WithoutCancel(ctx)

	go func() {
		var o outcome[T]
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("panic during dispatch: %v", r)
			}
			done <- o
		}()
		o.value, o.err = fn(detached)
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-expired:
		var zero T
		return zero, &domain.TimeoutError{Timeout: timeout}
	}
}
