// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/homeser/internal/admin"
	"github.com/carterperez-dev/homeser/internal/app"
	"github.com/carterperez-dev/homeser/internal/auth"
	"github.com/carterperez-dev/homeser/internal/cart"
	"github.com/carterperez-dev/homeser/internal/catalog"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/health"
	"github.com/carterperez-dev/homeser/internal/metrics"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/order"
	"github.com/carterperez-dev/homeser/internal/profile"
	"github.com/carterperez-dev/homeser/internal/review"
	"github.com/carterperez-dev/homeser/internal/server"
	"github.com/carterperez-dev/homeser/internal/storage"
	"github.com/carterperez-dev/homeser/internal/user"
	"github.com/carterperez-dev/homeser/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	healthHandler := health.NewHandler(cfg.App.Version,
		health.Dependency{Name: "database", Checker: a.DB},
		health.Dependency{Name: "redis", Checker: a.Redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Repo:       admin.NewRepository(a.DB.DB),
		DBStats:    a.DB.Stats,
		DBPing:     a.DB.Ping,
		RedisStats: a.Redis.PoolStats,
		RedisPing:  a.Redis.Ping,
		Tasks:      a.Queue,
		Cache:      a.Cache,
	})

	authHandler := auth.NewHandler(a.Auth, a.Sessions, cfg.SecureCookies())
	userHandler := user.NewHandler(a.Users)
	profileHandler := profile.NewHandler(a.Profiles)
	catalogHandler := catalog.NewHandler(a.Catalog)
	cartHandler := cart.NewHandler(a.Carts)
	orderHandler := order.NewHandler(a.Orders)
	reviewHandler := review.NewHandler(a.Reviews)

	var mediaDir string
	if local, ok := a.Storage.(*storage.Local); ok {
		mediaDir = local.BasePath()
	}

	webHandler, err := web.NewHandler(web.HandlerConfig{
		Accounts:      a.Auth,
		Sessions:      a.Sessions,
		Catalog:       a.Catalog,
		Reviews:       a.Reviews,
		Carts:         a.Carts,
		Orders:        a.Orders,
		Profiles:      a.Profiles,
		LoginURL:      cfg.Auth.LoginURL,
		SecureCookies: cfg.SecureCookies(),
		MediaDir:      mediaDir,
	})
	if err != nil {
		a.Close(ctx)
		return err
	}

	throttle := middleware.NewThrottle(a.Redis.Client, middleware.ThrottleConfig{
		Anonymous:     middleware.PerHour(cfg.RateLimit.Anonymous),
		Authenticated: middleware.PerHour(cfg.RateLimit.Authenticated),
		FailOpen:      cfg.RateLimit.FailOpen,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(metrics.Middleware)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler())

	authenticator := middleware.RequireAuth
	adminOnly := middleware.RequireAdmin

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS))
		r.Use(middleware.Identify(a.Auth, a.Auth, true))
		r.Use(throttle.Handler)

		r.Get("/", server.Index("/api",
			"users", "profiles", "services", "cart", "orders", "reviews",
		))

		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator)
		profileHandler.RegisterRoutes(r, authenticator)
		catalogHandler.RegisterRoutes(r, authenticator)
		cartHandler.RegisterRoutes(r, authenticator)
		orderHandler.RegisterRoutes(r, authenticator)
		reviewHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly, catalogHandler.RegisterAdminRoutes)
	})

	webHandler.RegisterRoutes(router, middleware.Identify(a.Auth, a.Auth, false))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		a.Close(context.Background())
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	drainDelay := cfg.Server.DrainDelay
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	a.Close(shutdownCtx)

	logger.Info("application stopped")
	return nil
}
