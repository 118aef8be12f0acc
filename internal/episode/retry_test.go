package episode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/envgate/pkg/protocol"
)

var fastRetry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

func TestWithRetry_RecoversFromRateLimit(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), fastRetry, "step", func() (string, error) {
		calls++
		if calls < 3 {
			return "", protocol.Errorf(protocol.ErrResourceExhausted, "slow down")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_OtherErrorsNotRetried(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), fastRetry, "step", func() (int, error) {
		calls++
		return 0, protocol.Errorf(protocol.ErrValidationFailed, "bad move")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	_, err = withRetry(context.Background(), fastRetry, "step", func() (int, error) {
		calls++
		return 0, errors.New("pipe closed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), fastRetry, "step", func() (int, error) {
		calls++
		return 0, protocol.Errorf(protocol.ErrResourceExhausted, "slow down")
	})
	assert.True(t, rateLimited(err))
	assert.Equal(t, 4, calls) // 1 initial + 3 retries
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := withRetry(ctx, RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, "step", func() (int, error) {
		return 0, protocol.Errorf(protocol.ErrResourceExhausted, "slow down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second
	for attempt := 0; attempt < 6; attempt++ {
		want := base << uint(attempt)
		if want > max {
			want = max
		}
		for i := 0; i < 20; i++ {
			d := backoffWithJitter(base, max, attempt)
			assert.GreaterOrEqual(t, d, want-want/4)
			assert.LessOrEqual(t, d, want+want/4)
		}
	}
}
