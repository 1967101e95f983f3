package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"portwarden/scanner"
)

const queueKey = "scans:queue"

// TaskStore defines persistence operations for scan tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *ScanTask) error
	GetTask(ctx context.Context, id string) (*ScanTask, error)
	UpdateTask(ctx context.Context, task *ScanTask) error
	PushToQueue(ctx context.Context, taskID string) error
	// PopFromQueue waits up to timeout for a task ID and returns
	// ErrQueueEmpty when none arrives.
	PopFromQueue(ctx context.Context, timeout time.Duration) (string, error)
	Ping(ctx context.Context) error
}

var (
	// ErrTaskNotFound indicates the requested task doesn't exist in the store.
	ErrTaskNotFound = errors.New("task not found")
	// ErrQueueEmpty is returned when no task was queued within the pop timeout.
	ErrQueueEmpty = errors.New("queue empty")
)

// RedisStore implements TaskStore on Redis hashes and a list-based queue.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed task store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) taskKey(id string) string {
	return fmt.Sprintf("scan:%s", id)
}

// CreateTask persists a new scan task.
func (s *RedisStore) CreateTask(ctx context.Context, task *ScanTask) error {
	return s.save(ctx, task)
}

// GetTask retrieves a task by ID.
func (s *RedisStore) GetTask(ctx context.Context, id string) (*ScanTask, error) {
	res, err := s.client.HGetAll(ctx, s.taskKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrTaskNotFound
	}
	return deserializeTask(res)
}

// UpdateTask overwrites the stored fields of an existing task.
func (s *RedisStore) UpdateTask(ctx context.Context, task *ScanTask) error {
	return s.save(ctx, task)
}

func (s *RedisStore) save(ctx context.Context, task *ScanTask) error {
	data, err := serializeTask(task)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.taskKey(task.ID), data).Err()
}

// PushToQueue enqueues a task ID for workers to process.
func (s *RedisStore) PushToQueue(ctx context.Context, taskID string) error {
	return s.client.LPush(ctx, queueKey, taskID).Err()
}

// PopFromQueue blocks for at most timeout waiting for a task ID.
func (s *RedisStore) PopFromQueue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := s.client.BRPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}
	if err != nil {
		return "", err
	}
	if len(res) != 2 {
		return "", errors.New("unexpected response size from BRPOP")
	}
	return res[1], nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func serializeTask(task *ScanTask) (map[string]interface{}, error) {
	var report string
	if task.Report != nil {
		encoded, err := json.Marshal(task.Report)
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		report = string(encoded)
	}

	completedAt := ""
	if task.CompletedAt != nil {
		completedAt = task.CompletedAt.Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"id":           task.ID,
		"status":       task.Status,
		"host":         task.Host,
		"ports":        task.Ports,
		"concurrency":  task.Concurrency,
		"timeout_ms":   task.TimeoutMs,
		"banner":       strconv.FormatBool(task.Banner),
		"report":       report,
		"created_at":   task.CreatedAt.Format(time.RFC3339Nano),
		"completed_at": completedAt,
		"error":        task.Error,
	}, nil
}

func deserializeTask(data map[string]string) (*ScanTask, error) {
	task := &ScanTask{
		ID:     data["id"],
		Status: data["status"],
		Host:   data["host"],
		Ports:  data["ports"],
		Error:  data["error"],
	}

	var err error
	if task.Concurrency, err = atoiField(data, "concurrency"); err != nil {
		return nil, err
	}
	if task.TimeoutMs, err = atoiField(data, "timeout_ms"); err != nil {
		return nil, err
	}
	if raw := data["banner"]; raw != "" {
		if task.Banner, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("field banner: %w", err)
		}
	}

	if raw := data["report"]; raw != "" {
		var report scanner.ScanReport
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		task.Report = &report
	}

	if raw := data["created_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		task.CreatedAt = t
	}
	if raw := data["completed_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		task.CompletedAt = &t
	}
	return task, nil
}

func atoiField(data map[string]string, key string) (int, error) {
	raw := data[key]
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}
