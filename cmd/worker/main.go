// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carterperez-dev/homeser/internal/app"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/tasks"
)

const jobTimeout = 2 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

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

	logger := app.NewLogger(cfg.Log).With("component", "worker")
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	scheduler, err := newScheduler(ctx, a)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	worker := tasks.NewWorker(a.Queue, cfg.Tasks.Workers)
	worker.Handle(tasks.TypeSendEmail, tasks.EmailHandler(a.Mailer))

	logger.Info("worker started",
		"queue", cfg.Tasks.Queue,
		"concurrency", cfg.Tasks.Workers,
	)

	err = worker.Run(ctx)
	logger.Info("worker stopped")
	return err
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

// newScheduler registers the periodic batches. A job with an empty schedule
// is left to its manage command.
func newScheduler(ctx context.Context, a *app.App) (*cron.Cron, error) {
	jobs := []job{
		{name: "rating refresh", schedule: a.Config.Tasks.RatingSchedule, run: a.Catalog.RefreshRatings},
		{name: "token flush", schedule: a.Config.Tasks.TokenFlushSchedule, run: a.Auth.FlushExpiredTokens},
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}

		if _, err := c.AddFunc(j.schedule, func() {
			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()

			n, err := j.run(runCtx)
			if err != nil {
				a.Logger.Error("scheduled job failed", "job", j.name, "error", err)
				return
			}
			a.Logger.Info("scheduled job finished", "job", j.name, "affected", n)
		}); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.schedule, err)
		}

		a.Logger.Info("job scheduled", "job", j.name, "schedule", j.schedule)
	}

	return c, nil
}
