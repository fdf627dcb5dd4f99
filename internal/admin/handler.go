// AngelaMos | 2026
// handler.go

// Package admin serves the staff-only operational endpoints: marketplace
// counts, pool and runtime stats, task results and cache maintenance.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/tasks"
)

type Clearer interface {
	Clear(ctx context.Context) error
}

type TaskInspector interface {
	Result(ctx context.Context, id string) (string, error)
	Pending(ctx context.Context) (int64, error)
}

type Pinger func(ctx context.Context) error

type HandlerConfig struct {
	Repo       Repository
	DBStats    func() sql.DBStats
	DBPing     Pinger
	RedisStats func() *redis.PoolStats
	RedisPing  Pinger
	Tasks      TaskInspector
	// Cache is the read-through cache. Sessions live under their own
	// prefix and survive a clear.
	Cache Clearer
}

type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// RegisterRoutes mounts /admin behind authenticator and adminOnly. mounts
// attach other packages' maintenance endpoints inside the same group.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
	mounts ...func(chi.Router),
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator, adminOnly)

		r.Get("/overview", h.Overview)
		r.Get("/stats", h.Stats)
		r.Get("/stats/db", h.DatabaseStats)
		r.Get("/stats/redis", h.RedisStats)
		r.Get("/stats/runtime", h.RuntimeStats)
		r.Get("/tasks/{taskID}", h.TaskResult)
		r.Post("/cache/clear", h.ClearCache)

		for _, mount := range mounts {
			mount(r)
		}
	})
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Repo == nil {
		core.NotFound(w, "overview")
		return
	}

	o, err := h.cfg.Repo.Overview(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, o)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats := SystemStats{
		Database: PoolHealth[DBPool]{Healthy: healthy(ctx, h.cfg.DBPing), Pool: h.dbPool()},
		Redis:    PoolHealth[RedisPool]{Healthy: healthy(ctx, h.cfg.RedisPing), Pool: h.redisPool()},
		Runtime:  readRuntimeStats(),
	}

	if h.cfg.Tasks != nil {
		n, err := h.cfg.Tasks.Pending(ctx)
		if err != nil {
			slog.WarnContext(ctx, "task queue length", "error", err)
		} else {
			stats.Tasks = &TaskQueueStats{Pending: n}
		}
	}

	core.OK(w, stats)
}

func (h *Handler) DatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.dbPool())
}

func (h *Handler) RedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.redisPool())
}

func (h *Handler) RuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntimeStats())
}

// TaskResult reports the outcome string a worker stored for a task.
func (h *Handler) TaskResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if h.cfg.Tasks == nil {
		core.NotFound(w, "task")
		return
	}

	res, err := h.cfg.Tasks.Result(r.Context(), id)
	if errors.Is(err, tasks.ErrNoResult) {
		core.NotFound(w, "task result")
		return
	}
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, TaskResult{ID: id, Result: res})
}

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Cache == nil {
		core.NotFound(w, "cache")
		return
	}

	if err := h.cfg.Cache.Clear(r.Context()); err != nil {
		core.InternalServerError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "cache cleared")
	core.OK(w, core.StatusMessage{Status: "cache cleared"})
}

func healthy(ctx context.Context, ping Pinger) bool {
	return ping == nil || ping(ctx) == nil
}

func (h *Handler) dbPool() *DBPool {
	if h.cfg.DBStats == nil {
		return nil
	}

	s := h.cfg.DBStats()
	return &DBPool{
		MaxOpen:      s.MaxOpenConnections,
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration.String(),
	}
}

func (h *Handler) redisPool() *RedisPool {
	if h.cfg.RedisStats == nil {
		return nil
	}

	s := h.cfg.RedisStats()
	return &RedisPool{
		Hits:     s.Hits,
		Misses:   s.Misses,
		Timeouts: s.Timeouts,
		Total:    s.TotalConns,
		Idle:     s.IdleConns,
		Stale:    s.StaleConns,
	}
}

func readRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		CPUs:       runtime.NumCPU(),
		HeapAlloc:  m.HeapAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}
