// AngelaMos | 2026
// connect.go

package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const pingTimeout = 5 * time.Second

// connectBackoff bounds how long startup waits for a dependency that is
// still coming up, as under docker compose.
var connectBackoff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = 20 * time.Second
	return b
}

func waitFor(ctx context.Context, name string, ping func(context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		return ping(ctx)
	}

	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "dependency not ready",
			"dependency", name,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(connectBackoff(), ctx), notify); err != nil {
		return fmt.Errorf("connect %s: %w", name, err)
	}
	return nil
}
