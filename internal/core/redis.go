// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/metrics"
)

// Redis backs the cache, sessions, token blacklist, throttle and task
// queue. Each concern keeps its own key prefix on the one client.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opts)
	client.AddHook(instrumentHook{})

	r := &Redis{Client: client}
	if err := waitFor(ctx, "redis", r.Ping); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, err
	}

	return r, nil
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

// instrumentHook times every command and opens a span for it. A redis.Nil
// reply is a miss, not a failure.
type instrumentHook struct{}

func (instrumentHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (instrumentHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := strings.ToLower(cmd.Name())
		ctx, span := StartSpan(ctx, "redis."+name, attribute.String("db.system", "redis"))
		defer span.End()

		start := time.Now()
		err := next(ctx, cmd)
		observeRedis(name, start, err)
		if err != nil && !errors.Is(err, redis.Nil) {
			SetSpanError(ctx, err)
		}
		return err
	}
}

func (instrumentHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := StartSpan(ctx, "redis.pipeline",
			attribute.String("db.system", "redis"),
			attribute.Int("redis.commands", len(cmds)),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmds)
		observeRedis("pipeline", start, err)
		if err != nil && !errors.Is(err, redis.Nil) {
			SetSpanError(ctx, err)
		}
		return err
	}
}

func observeRedis(command string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, redis.Nil):
		outcome = "nil"
	case err != nil:
		outcome = "error"
	}
	metrics.RedisCommandDuration.WithLabelValues(command, outcome).Observe(time.Since(start).Seconds())
}
