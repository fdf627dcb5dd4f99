// AngelaMos | 2026
// worker.go

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/metrics"
)

// HandlerFunc runs one task and reports its outcome as text. Failures are
// part of the result, not returned.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) string

type Worker struct {
	queue       *Queue
	handlers    map[string]HandlerFunc
	concurrency int
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func NewWorker(queue *Queue, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:       queue,
		handlers:    make(map[string]HandlerFunc),
		concurrency: concurrency,
		pollTimeout: 5 * time.Second,
		retryDelay:  time.Second,
	}
}

func (w *Worker) Handle(taskType string, fn HandlerFunc) {
	w.handlers[taskType] = fn
}

// Run consumes tasks on concurrency goroutines until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range w.concurrency {
		g.Go(func() error {
			w.loop(ctx, i)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) {
	logger := slog.With("worker", id)
	logger.Info("task worker started", "queue", w.queue.name)

	for ctx.Err() == nil {
		task, err := w.queue.dequeue(ctx, w.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			logger.Error("dequeue failed", "error", err)
			sleep(ctx, w.retryDelay)
			continue
		}
		if task == nil {
			continue
		}

		w.process(ctx, task)
	}

	logger.Info("task worker stopped")
}

func (w *Worker) process(ctx context.Context, task *Task) {
	ctx, span := core.StartSpan(ctx, "tasks.process",
		attribute.String("task.id", task.ID),
		attribute.String("task.type", task.Type),
	)
	defer span.End()

	handler, ok := w.handlers[task.Type]
	if !ok {
		metrics.TasksTotal.WithLabelValues(task.Type, "unknown").Inc()
		slog.WarnContext(ctx, "no handler for task", "task_id", task.ID, "type", task.Type)
		return
	}

	start := time.Now()
	result := handler(ctx, task.Payload)
	metrics.TasksTotal.WithLabelValues(task.Type, "processed").Inc()

	if err := w.queue.storeResult(ctx, task.ID, result); err != nil {
		slog.ErrorContext(ctx, "store task result failed", "task_id", task.ID, "error", err)
	}

	slog.InfoContext(ctx, "task processed",
		"task_id", task.ID,
		"type", task.Type,
		"duration", time.Since(start),
		"result", result,
	)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
