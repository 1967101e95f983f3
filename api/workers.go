package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"portwarden/logging"
	"portwarden/scanner"
)

const (
	defaultPopTimeout = 5 * time.Second
	storeTimeout      = 5 * time.Second
)

// WorkerConfig carries the scan defaults applied to tasks that leave them unset.
type WorkerConfig struct {
	Concurrency    int
	ConnectTimeout time.Duration
	Probes         *scanner.ProbeCache
	Logger         *slog.Logger
	// PopTimeout bounds each wait on the queue so workers notice shutdown.
	PopTimeout time.Duration
}

// StartWorkers launches numWorkers goroutines that process queued scan tasks
// until ctx is cancelled. The returned function blocks until all of them
// have returned.
func StartWorkers(ctx context.Context, store TaskStore, cfg WorkerConfig, numWorkers int) (wait func()) {
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Logger()
	}
	var g errgroup.Group
	for i := 0; i < numWorkers; i++ {
		w := &taskWorker{
			store:  store,
			cfg:    cfg,
			logger: cfg.Logger.With("worker_id", i),
		}
		w.engine = scanner.NewEngine(scanner.WithLogger(w.logger))
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}
	return func() { _ = g.Wait() }
}

type taskWorker struct {
	store  TaskStore
	cfg    WorkerConfig
	engine *scanner.Engine
	logger *slog.Logger
}

func (w *taskWorker) loop(ctx context.Context) {
	for ctx.Err() == nil {
		taskID, err := w.store.PopFromQueue(ctx, w.cfg.PopTimeout)
		switch {
		case err == nil:
			w.process(ctx, taskID)
		case errors.Is(err, ErrQueueEmpty):
		case ctx.Err() != nil:
			return
		default:
			w.logger.Error("worker failed to pop task", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *taskWorker) process(ctx context.Context, taskID string) {
	task, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			w.logger.Warn("worker task disappeared", "task_id", taskID)
			return
		}
		w.logger.Error("worker failed to load task", "task_id", taskID, "error", err)
		return
	}

	task.Status = StatusRunning
	task.Error = ""
	task.Report = nil
	task.CompletedAt = nil
	if err := w.store.UpdateTask(ctx, task); err != nil {
		w.logger.Error("worker failed to mark task running", "task_id", taskID, "error", err)
		return
	}

	report, err := w.engine.Scan(ctx, scanner.Target{Host: task.Host}, w.scanConfig(task))
	if err != nil {
		w.failTask(ctx, task, err)
		return
	}

	task.Status = StatusCompleted
	task.Report = report
	now := time.Now().UTC()
	task.CompletedAt = &now
	w.save(ctx, task)
	w.logger.Info("task completed", "task_id", task.ID, "open", report.OpenCount, "incomplete", report.Incomplete)
}

func (w *taskWorker) scanConfig(task *ScanTask) scanner.ScanConfig {
	cfg := scanner.ScanConfig{
		PortSpec:       task.Ports,
		Concurrency:    task.Concurrency,
		ConnectTimeout: time.Duration(task.TimeoutMs) * time.Millisecond,
		GrabBanner:     task.Banner,
		Probes:         w.cfg.Probes,
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = w.cfg.Concurrency
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = w.cfg.ConnectTimeout
	}
	return cfg
}

func (w *taskWorker) failTask(ctx context.Context, task *ScanTask, err error) {
	w.logger.Error("worker task failed", "task_id", task.ID, "error", err)
	task.Status = StatusFailed
	task.Error = err.Error()
	task.Report = nil
	now := time.Now().UTC()
	task.CompletedAt = &now
	w.save(ctx, task)
}

// save persists the terminal state even when ctx was cancelled mid-scan.
func (w *taskWorker) save(ctx context.Context, task *ScanTask) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := w.store.UpdateTask(ctx, task); err != nil {
		w.logger.Error("worker failed to update task", "task_id", task.ID, "status", task.Status, "error", err)
	}
}
