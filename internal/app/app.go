// AngelaMos | 2026
// app.go

// Package app assembles infrastructure and domain services from config.
// The API server, the task worker and the manage CLI all start here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/carterperez-dev/homeser/internal/auth"
	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/cart"
	"github.com/carterperez-dev/homeser/internal/catalog"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/mail"
	"github.com/carterperez-dev/homeser/internal/order"
	"github.com/carterperez-dev/homeser/internal/profile"
	"github.com/carterperez-dev/homeser/internal/review"
	"github.com/carterperez-dev/homeser/internal/session"
	"github.com/carterperez-dev/homeser/internal/storage"
	"github.com/carterperez-dev/homeser/internal/tasks"
	"github.com/carterperez-dev/homeser/internal/user"
)

const sessionPrefix = "session:"

type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB        *core.Database
	Redis     *core.Redis
	Cache     cache.Cache
	Sessions  *session.Manager
	Storage   storage.Storage
	Mailer    mail.Sender
	Queue     *tasks.Queue
	JWT       *auth.JWTManager
	Telemetry *core.Telemetry

	Users    *user.Service
	Auth     *auth.Service
	Catalog  *catalog.Catalog
	Orders   *order.Service
	Carts    *cart.Service
	Reviews  *review.Service
	Profiles *profile.Service
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		a.Telemetry = tel
		logger.Info("tracer initialized", "export", cfg.Otel.Enabled, "endpoint", cfg.Otel.Endpoint)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Redis = rdb
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	if err := a.buildInfra(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.buildServices()
	return a, nil
}

func (a *App) buildInfra() error {
	cfg := a.Config

	switch cfg.Cache.Backend {
	case "memory":
		mem, err := cache.NewMemory(cfg.Cache.MemorySize)
		if err != nil {
			return fmt.Errorf("memory cache: %w", err)
		}
		a.Cache = mem
	default:
		a.Cache = cache.NewRedis(a.Redis.Client, "")
	}
	a.Logger.Info("cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)

	a.Sessions = session.NewManager(
		cache.NewRedis(a.Redis.Client, sessionPrefix),
		cfg.Session,
		cfg.SecureCookies(),
	)

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	a.Storage = store

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	a.JWT = jwtManager

	a.Mailer = mail.New(cfg.Mail)
	a.Queue = tasks.NewQueue(a.Redis.Client, cfg.Tasks.Queue, cfg.Tasks.ResultTTL)
	return nil
}

func (a *App) buildServices() {
	cfg := a.Config
	db := a.DB.DB
	ttl := cfg.Cache.TTL

	a.Users = user.NewService(user.NewRepository(db), a.Cache, ttl)

	a.Auth = auth.NewService(auth.Deps{
		Repo:      auth.NewRepository(db),
		Tx:        auth.NewTokenTx(db),
		JWT:       a.JWT,
		Users:     a.Users,
		Blacklist: auth.NewRedisBlacklist(a.Redis.Client),
		Sessions:  a.Sessions,
		Cache:     a.Cache,
		Mailer:    a.Mailer,
	}, cfg.Auth, cfg.App.BaseURL)

	a.Catalog = catalog.NewCatalog(catalog.NewRepository(db), a.Cache, ttl)
	a.Orders = order.NewService(order.NewRepository(db), a.Cache, ttl)
	a.Reviews = review.NewService(review.NewRepository(db), a.Orders, a.Cache, ttl)
	a.Profiles = profile.NewService(profile.NewRepository(db), a.Storage, a.Cache, ttl)

	notifier := tasks.NewOrderNotifier(a.Queue, a.userEmail, cfg.App.BaseURL)
	a.Carts = cart.NewService(db, a.Catalog, notifier, a.Cache, cfg.Cache.CartTTL())
}

func (a *App) userEmail(ctx context.Context, userID int64) (string, error) {
	u, err := a.Users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close(ctx context.Context) {
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			a.Logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("redis close error", "error", err)
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("database close error", "error", err)
		}
	}
}

// NewLogger builds the process logger from log config: JSON or text to
// stdout at the configured level.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
