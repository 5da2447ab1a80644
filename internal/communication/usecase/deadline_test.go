package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/22club/communications/internal/communication/domain"
)

func TestRaceDeadline(t *testing.T) {
	t.Run("OperationWins", func(t *testing.T) {
		got, err := RaceDeadline(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			return 42, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("OperationError", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := RaceDeadline(context.Background(), time.Second, func(ctx context.Context) (string, error) {
			return "", boom
		})

		assert.ErrorIs(t, err, boom)
	})

	t.Run("DeadlineWinsWithoutCancellingOperation", func(t *testing.T) {
		release := make(chan struct{})
		finished := make(chan error, 1)

		_, err := RaceDeadline(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
			<-release
			finished <- ctx.Err()
			return 1, nil
		})

		var timeoutErr *domain.TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Equal(t, 10*time.Millisecond, timeoutErr.Timeout)
		assert.ErrorIs(t, err, domain.ErrSendTimeout)

		close(release)
		assert.NoError(t, <-finished)
	})

	t.Run("CallerCancellationDoesNotReachOperation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		got, err := RaceDeadline(ctx, time.Second, func(ctx context.Context) (error, error) {
			return ctx.Err(), nil
		})

		require.NoError(t, err)
		assert.NoError(t, got)
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {
		_, err := RaceDeadline(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			panic("nil map")
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic during dispatch: nil map")
	})
}
