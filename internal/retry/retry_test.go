package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gxo-labs/logguard/internal/logger"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	h := NewHelper(logger.NewNopLogger())
	calls := 0
	err := h.Do(context.Background(), Config{Attempts: 3, Delay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	h := NewHelper(logger.NewNopLogger())
	calls := 0
	err := h.Do(context.Background(), Config{Attempts: 2}, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnInterrupt(t *testing.T) {
	h := NewHelper(logger.NewNopLogger())
	calls := 0
	err := h.Do(context.Background(), Config{Attempts: 5}, func(context.Context) error {
		calls++
		return lgerrors.NewInterruptedError("failed", "Max Log Size reached")
	})
	_, ok := lgerrors.IsInterrupted(err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestDoReportsCancellationCause(t *testing.T) {
	h := NewHelper(logger.NewNopLogger())
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(lgerrors.NewInterruptedError("aborted", "limit"))

	err := h.Do(ctx, Config{Attempts: 2}, func(context.Context) error {
		t.Fatal("operation must not run on a cancelled context")
		return nil
	})
	_, ok := lgerrors.IsInterrupted(err)
	assert.True(t, ok)
}

func TestBackoffHonoursMaxDelay(t *testing.T) {
	h := NewHelper(logger.NewNopLogger())
	cfg := normalize(Config{Attempts: 5, Delay: 10 * time.Millisecond, BackoffFactor: 10, MaxDelay: 50 * time.Millisecond})
	assert.Equal(t, 10*time.Millisecond, h.backoff(cfg, 1))
	assert.Equal(t, 50*time.Millisecond, h.backoff(cfg, 3))
}
