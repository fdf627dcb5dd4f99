// AngelaMos | 2026
// queue.go

// Package tasks is a small Redis-list job queue. Producers LPUSH JSON tasks,
// workers BRPOP them and store a result string under tasks:result:<id>.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/homeser/internal/metrics"
)

const resultPrefix = "tasks:result:"

var ErrNoResult = errors.New("task result not available")

// Backend is the subset of the Redis client the queue uses.
type Backend interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type Queue struct {
	rdb       Backend
	name      string
	resultTTL time.Duration
}

func NewQueue(rdb Backend, name string, resultTTL time.Duration) *Queue {
	return &Queue{rdb: rdb, name: name, resultTTL: resultTTL}
}

// Enqueue pushes a task and returns its id. It does not wait for a worker.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", taskType, err)
	}

	task := Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}

	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		metrics.TasksTotal.WithLabelValues(taskType, "enqueue_failed").Inc()
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	metrics.TasksTotal.WithLabelValues(taskType, "enqueued").Inc()
	return task.ID, nil
}

// Result returns the stored outcome of a finished task.
func (q *Queue) Result(ctx context.Context, id string) (string, error) {
	res, err := q.rdb.Get(ctx, resultPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoResult
	}
	if err != nil {
		return "", fmt.Errorf("get task result: %w", err)
	}
	return res, nil
}

// Pending reports how many tasks are waiting for a worker.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// dequeue blocks up to timeout. It returns (nil, nil) when nothing arrived.
func (q *Queue) dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue: unexpected reply length %d", len(res))
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

func (q *Queue) storeResult(ctx context.Context, id, result string) error {
	return q.rdb.Set(ctx, resultPrefix+id, result, q.resultTTL).Err()
}
