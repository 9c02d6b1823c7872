package retry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffWithinJitter(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := time.Second << attempt
		for i := 0; i < 20; i++ {
			d := Startup.Backoff(attempt)
			assert.GreaterOrEqual(t, d, base*3/4)
			assert.LessOrEqual(t, d, base*5/4)
		}
	}
	assert.Equal(t, time.Second, Policy{Base: time.Second}.Backoff(-1))
	assert.Equal(t, 4*time.Second, Policy{Base: time.Second}.Backoff(2))
}

func TestDo(t *testing.T) {
	fast := Policy{Attempts: 3, Base: time.Millisecond}
	ctx := context.Background()
	refused := errors.New("connection refused")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var logs bytes.Buffer
		calls := 0
		err := fast.Do(ctx, slog.New(slog.NewTextHandler(&logs, nil)), "ping kafka", nil, func() error {
			calls++
			if calls < 3 {
				return refused
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("ping kafka failed, retrying")))
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := fast.Do(ctx, nil, "connect", nil, func() error {
			calls++
			return refused
		})
		assert.ErrorIs(t, err, refused)
		assert.Equal(t, 3, calls)
		assert.EqualError(t, err, "connect after 3 attempts: connection refused")
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		sqlErr := errors.New("syntax error at or near")
		err := fast.Do(ctx, nil, "migrate", func(err error) bool { return err == refused }, func() error {
			calls++
			return sqlErr
		})
		assert.Same(t, sqlErr, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		slow := Policy{Attempts: 3, Base: time.Hour}
		err := slow.Do(cctx, nil, "connect", nil, func() error { return refused })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
