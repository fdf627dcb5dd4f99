// AngelaMos | 2026
// connect_test.go

package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(t *testing.T, retries uint64) {
	t.Helper()
	prev := connectBackoff
	connectBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), retries)
	}
	t.Cleanup(func() { connectBackoff = prev })
}

func TestWaitForRetriesUntilReady(t *testing.T) {
	fastBackoff(t, 5)

	calls := 0
	err := waitFor(context.Background(), "postgres", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitForGivesUp(t *testing.T) {
	fastBackoff(t, 2)

	calls := 0
	err := waitFor(context.Background(), "redis", func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
	assert.Equal(t, 3, calls)
}

func TestWaitForStopsOnCancel(t *testing.T) {
	fastBackoff(t, 100)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := waitFor(ctx, "postgres", func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
