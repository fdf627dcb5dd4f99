// AngelaMos | 2026
// throttle.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/metrics"
)

type ThrottleConfig struct {
	Anonymous     redis_rate.Limit
	Authenticated redis_rate.Limit
	FailOpen      bool
}

// Throttle applies one request budget to anonymous callers, keyed by IP,
// and another to authenticated callers, keyed by user. Run it after
// Identify so the caller class is known. When Redis is unreachable an
// in-process token bucket takes over.
type Throttle struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	cfg      ThrottleConfig
}

func NewThrottle(rdb redis.UniversalClient, cfg ThrottleConfig) *Throttle {
	return &Throttle{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		cfg:      cfg,
	}
}

func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class, key, limit := t.classify(r)

		res, err := t.allow(r.Context(), key, limit)
		if err != nil {
			if t.cfg.FailOpen {
				slog.WarnContext(r.Context(), "throttle error, failing open",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		setRateLimitHeaders(w, res, limit)

		if res.Allowed == 0 {
			metrics.ThrottledTotal.WithLabelValues(class).Inc()
			writeThrottled(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) classify(r *http.Request) (string, string, redis_rate.Limit) {
	actor := ActorFrom(r.Context())
	if actor.IsAnonymous() {
		return "anon", "throttle:anon:" + ClientIP(r), t.cfg.Anonymous
	}
	return "user", "throttle:user:" + strconv.FormatInt(actor.UserID, 10), t.cfg.Authenticated
}

func (t *Throttle) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	res, err := t.limiter.Allow(ctx, key, limit)
	if err != nil {
		return t.fallback.allow(key, limit)
	}
	return res, nil
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))
}

func writeThrottled(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.NewAppError(
		nil,
		fmt.Sprintf("Request was throttled. Expected available in %d seconds.", retryAfter),
		http.StatusTooManyRequests,
		"RATE_LIMITED",
	))
}

func PerHour(n int) redis_rate.Limit {
	return redis_rate.PerHour(n)
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	swept    time.Time
}

const localEntryTTL = 10 * time.Minute

func newLocalLimiter() *localLimiter {
	return &localLimiter{limiters: make(map[string]*limiterEntry)}
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	if limit.Period <= 0 || limit.Rate <= 0 {
		return nil, fmt.Errorf("invalid limit %v", limit)
	}
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	now := time.Now()

	l.mu.Lock()
	l.sweep(now)
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = now
	l.mu.Unlock()

	allowed := entry.limiter.AllowN(now, 1)
	interval := time.Duration(float64(time.Second) / perSec)

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(entry.limiter.TokensAt(now)), 0),
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	return res, nil
}

// sweep drops idle entries at most once per TTL. Caller holds mu.
func (l *localLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < localEntryTTL {
		return
	}
	l.swept = now
	for k, e := range l.limiters {
		if now.Sub(e.lastAccess) > localEntryTTL {
			delete(l.limiters, k)
		}
	}
}
