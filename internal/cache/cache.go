// AngelaMos | 2026
// cache.go

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/metrics"
)

var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key-value store with per-key expiry. Get returns
// ErrMiss for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// Fetch is the read-through path: return the cached value for key, or run
// load, store its result for ttl and return it. Backend failures are logged
// and bypassed so a broken cache never fails a read.
func Fetch[T any](
	ctx context.Context,
	c Cache,
	entity string,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, error),
) (T, error) {
	raw, err := c.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			record(ctx, entity, key, "hit")
			return v, nil
		}
		slog.WarnContext(ctx, "discarding undecodable cache entry", "key", key)
		record(ctx, entity, key, "miss")
	case errors.Is(err, ErrMiss):
		record(ctx, entity, key, "miss")
	default:
		slog.WarnContext(ctx, "cache read failed, bypassing", "key", key, "error", err)
		record(ctx, entity, key, "error")
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return v, nil
	}

	if err := c.Set(ctx, key, encoded, ttl); err != nil {
		slog.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}

	return v, nil
}

// Invalidate deletes keys, logging instead of failing.
func Invalidate(ctx context.Context, c Cache, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		slog.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}

func record(ctx context.Context, entity, key, result string) {
	metrics.CacheRequestsTotal.WithLabelValues(entity, result).Inc()
	core.AddSpanEvent(ctx, "cache."+result,
		attribute.String("cache.key", key),
		attribute.String("cache.entity", entity),
	)
}
