package api

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

// memStore is an in-memory TaskStore for handler and worker tests.
type memStore struct {
	mu      sync.Mutex
	tasks   map[string]ScanTask
	queue   chan string
	pingErr error
	pushErr error
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]ScanTask), queue: make(chan string, 16)}
}

func (m *memStore) CreateTask(ctx context.Context, task *ScanTask) error {
	return m.UpdateTask(ctx, task)
}

func (m *memStore) GetTask(ctx context.Context, id string) (*ScanTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

func (m *memStore) UpdateTask(ctx context.Context, task *ScanTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return nil
}

func (m *memStore) PushToQueue(ctx context.Context, taskID string) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.queue <- taskID
	return nil
}

func (m *memStore) PopFromQueue(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case id := <-m.queue:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", ErrQueueEmpty
	}
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *memStore) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Status
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
