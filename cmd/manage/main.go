// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/carterperez-dev/homeser/internal/app"
	"github.com/carterperez-dev/homeser/internal/catalog"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/migrate"
	"github.com/carterperez-dev/homeser/internal/policy"
	"github.com/carterperez-dev/homeser/internal/tasks"
	"github.com/carterperez-dev/homeser/internal/user"
)

const minPasswordLen = 8

// systemActor performs admin-only catalog writes on behalf of the operator.
var systemActor = policy.Actor{Role: policy.RoleAdmin}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		slog.Error("manage failed", "error", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "manage",
		Usage: "HomeSer maintenance commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			userCommand("createsuperuser", "create an active admin account", true),
			userCommand("createuser", "create an active client account", false),
			{
				Name:  "seed-demo-data",
				Usage: "create a demo admin, five clients and ten services",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "admin-password", Value: "adminpassword"},
					&cli.StringFlag{Name: "client-password", Value: "clientpassword"},
				},
				Action: seedDemoData,
			},
			{
				Name:   "update-ratings",
				Usage:  "recompute every service's average rating",
				Action: updateRatings,
			},
			{
				Name:   "flush-expired-tokens",
				Usage:  "delete refresh token records that expired over a day ago",
				Action: flushExpiredTokens,
			},
			{
				Name:   "clear-cache",
				Usage:  "drop every read-through cache entry",
				Action: clearCache,
			},
			{
				Name:  "send-test-email",
				Usage: "queue a test email for the worker",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "to", Required: true, Usage: "recipient address"},
				},
				Action: sendTestEmail,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg.Log).With("component", "manage")
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// withApp runs fn against a fully assembled App and closes it afterwards.
func withApp(c *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}

	a, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return fn(c.Context, a)
}

func migrateCommand() *cli.Command {
	open := func(c *cli.Context) (*migrate.Migrator, error) {
		cfg, _, err := loadConfig(c)
		if err != nil {
			return nil, err
		}
		db, err := core.NewDatabase(c.Context, cfg.Database)
		if err != nil {
			return nil, err
		}
		m, err := migrate.New(db.DB.DB)
		if err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, err
		}
		return m, nil
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					m, err := open(c)
					if err != nil {
						return err
					}
					defer m.Close()
					return m.Up()
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "migrations to roll back, 0 for all"},
				},
				Action: func(c *cli.Context) error {
					m, err := open(c)
					if err != nil {
						return err
					}
					defer m.Close()
					return m.Down(c.Int("steps"))
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					m, err := open(c)
					if err != nil {
						return err
					}
					defer m.Close()

					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "version %d (dirty=%t)\n", v, dirty)
					return nil
				},
			},
		},
	}
}

func userCommand(name, usage string, admin bool) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "account password",
				EnvVars: []string{"HOMESER_PASSWORD"},
			},
		},
		Action: func(c *cli.Context) error {
			password := c.String("password")
			if len(password) < minPasswordLen {
				return fmt.Errorf("password must be at least %d characters", minPasswordLen)
			}

			return withApp(c, func(ctx context.Context, a *app.App) error {
				create := a.Users.CreateUser
				if admin {
					create = a.Users.CreateSuperuser
				}

				u, err := create(ctx, c.String("username"), c.String("email"), password)
				if errors.Is(err, core.ErrDuplicateKey) {
					return errors.New("a user with that username or email already exists")
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(c.App.Writer, "created %s %q (id %d)\n", u.Role, u.Username, u.ID)
				return nil
			})
		},
	}
}

// seedDemoData is safe to rerun: existing accounts are skipped and services
// are only added to an empty catalog.
func seedDemoData(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		if err := seedUser(ctx, c, a.Users.CreateSuperuser, "admin", c.String("admin-password")); err != nil {
			return err
		}

		for i := range 5 {
			name := fmt.Sprintf("client%d", i)
			if err := seedUser(ctx, c, a.Users.CreateUser, name, c.String("client-password")); err != nil {
				return err
			}
		}

		existing, err := a.Catalog.List(ctx, systemActor, catalog.ListParams{})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			fmt.Fprintf(c.App.Writer, "catalog has %d services, skipping\n", len(existing))
			return nil
		}

		for i := range 10 {
			price := decimal.NewFromInt(int64(15 + i*9)).Add(decimal.New(99, -2))
			svc, err := a.Catalog.Create(ctx, systemActor, catalog.CreateServiceRequest{
				Name:        fmt.Sprintf("Service %d", i),
				Description: fmt.Sprintf("Description for service %d", i),
				Price:       &price,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "created service %q at %s\n", svc.Name, svc.Price.StringFixed(2))
		}
		return nil
	})
}

type createFunc func(ctx context.Context, username, email, password string) (*user.User, error)

// seedUser skips an account that already exists.
func seedUser(ctx context.Context, c *cli.Context, create createFunc, username, password string) error {
	u, err := create(ctx, username, username+"@example.com", password)
	if errors.Is(err, core.ErrDuplicateKey) {
		fmt.Fprintf(c.App.Writer, "%s exists, skipping\n", username)
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed %s: %w", username, err)
	}
	fmt.Fprintf(c.App.Writer, "created %s %q\n", u.Role, u.Username)
	return nil
}

func updateRatings(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		n, err := a.Catalog.RefreshRatings(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "updated ratings for %d services\n", n)
		return nil
	})
}

func flushExpiredTokens(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		n, err := a.Auth.FlushExpiredTokens(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted %d expired tokens\n", n)
		return nil
	})
}

func clearCache(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		if err := a.Cache.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "cache cleared")
		return nil
	})
}

func sendTestEmail(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		id, err := a.Queue.SendEmail(ctx, tasks.EmailPayload{
			Subject: "HomeSer test email",
			Body:    "If you can read this, outgoing mail works.",
			To:      c.StringSlice("to"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "queued task %s\n", id)
		return nil
	})
}
