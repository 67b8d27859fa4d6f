package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes tasks on one
// named queue.
type Worker struct {
	id           string
	podID        string
	queue        string
	client       *ent.Client
	config       *config.QueueConfig
	executor     TaskExecutor
	pool         TaskRegistry
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

// TaskRegistry is the subset of WorkerPool used by Worker for task registration.
type TaskRegistry interface {
	RegisterTask(taskID string, cancel context.CancelFunc)
	UnregisterTask(taskID string)
}

// NewWorker creates a new queue worker bound to a single queue name.
func NewWorker(id, podID, queue string, client *ent.Client, cfg *config.QueueConfig, executor TaskExecutor, pool TaskRegistry) *Worker {
	return &Worker{
		id:       id,
		podID:    podID,
		queue:    queue,
		client:   client,
		config:   cfg,
		executor: executor,
		pool:     pool,
		stopCh:   make(chan struct{}),
		status:   WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID, "queue", w.queue)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoTasksAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing task", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a task, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	activeCount, err := w.client.TaskRecord.Query().
		Where(
			taskrecord.QueueEQ(w.queue),
			taskrecord.StatusEQ(taskrecord.StatusRunning),
		).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("checking active tasks: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentTasks {
		return ErrAtCapacity
	}

	task, err := w.claimNextTask(ctx)
	if err != nil {
		return err
	}

	log := slog.With("task_id", task.ID, "task_name", task.TaskName, "worker_id", w.id)
	log.Info("Task claimed")

	w.setStatus(WorkerStatusWorking, task.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	taskCtx, cancelTask := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancelTask()

	w.pool.RegisterTask(task.ID, cancelTask)
	defer w.pool.UnregisterTask(task.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(taskCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, task.ID)

	result := w.executor.Execute(taskCtx, task)

	if result == nil {
		switch {
		case errors.Is(taskCtx.Err(), context.DeadlineExceeded):
			result = &ExecutionResult{
				Status: taskrecord.StatusFailed,
				Error:  fmt.Errorf("task timed out after %v", w.config.TaskTimeout),
			}
		case errors.Is(taskCtx.Err(), context.Canceled):
			result = &ExecutionResult{
				Status: taskrecord.StatusFailed,
				Error:  context.Canceled,
			}
		default:
			result = &ExecutionResult{
				Status: taskrecord.StatusFailed,
				Error:  fmt.Errorf("executor returned nil result"),
			}
		}
	}

	cancelHeartbeat()

	if err := w.updateTaskTerminalStatus(context.Background(), task, result); err != nil {
		log.Error("Failed to update task terminal status", "error", err)
		return err
	}

	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()

	log.Info("Task processing complete", "status", result.Status)
	return nil
}

// claimNextTask atomically claims the next claimable task using FOR UPDATE SKIP LOCKED.
func (w *Worker) claimNextTask(ctx context.Context) (*ent.TaskRecord, error) {
	tx, err := w.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	task, err := tx.TaskRecord.Query().
		Where(
			taskrecord.QueueEQ(w.queue),
			taskrecord.StatusEQ(taskrecord.StatusPending),
			taskrecord.AvailableAtLTE(time.Now()),
		).
		Order(ent.Asc(taskrecord.FieldAvailableAt)).
		Limit(1).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNoTasksAvailable
		}
		return nil, fmt.Errorf("failed to query pending task: %w", err)
	}

	now := time.Now()
	task, err = task.Update().
		SetStatus(taskrecord.StatusRunning).
		SetClaimedBy(w.podID).
		SetLastInteractionAt(now).
		AddAttempts(1).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return task, nil
}

// runHeartbeat periodically updates last_interaction_at for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(w.config.PollInterval * 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.TaskRecord.UpdateOneID(taskID).
				SetLastInteractionAt(time.Now()).
				Exec(ctx); err != nil {
				slog.Warn("Heartbeat update failed", "task_id", taskID, "error", err)
			}
		}
	}
}

// updateTaskTerminalStatus writes the final task status. A StatusFailed
// result whose error is classified retryable (coreerrors.IsRetryable) is not
// actually terminal: the task is instead returned to pending with a backoff
// delay, up to config.MaxTaskAttempts — only once that bound is reached, or
// the failure is non-retryable, does the status become genuinely terminal.
func (w *Worker) updateTaskTerminalStatus(ctx context.Context, task *ent.TaskRecord, result *ExecutionResult) error {
	if result.Status == taskrecord.StatusFailed && isRetryableResult(result) && task.Attempts < w.maxTaskAttempts() {
		update := w.client.TaskRecord.UpdateOneID(task.ID).
			SetStatus(taskrecord.StatusPending).
			SetAvailableAt(time.Now().Add(w.retryBackoff(task.Attempts))).
			ClearClaimedBy()
		if result.Error != nil {
			update = update.SetLastError(result.Error.Error())
		}
		return update.Exec(ctx)
	}

	update := w.client.TaskRecord.UpdateOneID(task.ID).
		SetStatus(result.Status)

	if result.Error != nil {
		update = update.SetLastError(result.Error.Error())
	}

	return update.Exec(ctx)
}

// isRetryableResult reports whether result's error was classified by the
// handler as a retryable coreerrors.Kind (LLM_UNAVAILABLE).
func isRetryableResult(result *ExecutionResult) bool {
	if result.Error == nil {
		return false
	}
	var taskErr *coreerrors.TaskError
	if errors.As(result.Error, &taskErr) {
		return coreerrors.IsRetryable(taskErr.Kind)
	}
	return false
}

// maxTaskAttempts defaults to 3 when unset so a zero-value config.QueueConfig
// (as used by older callers/tests) still bounds retries rather than looping
// forever.
func (w *Worker) maxTaskAttempts() int {
	if w.config.MaxTaskAttempts <= 0 {
		return 3
	}
	return w.config.MaxTaskAttempts
}

// retryBackoff computes the delay before a retryably-failed task becomes
// claimable again: doubling per attempt, capped at RetryBackoffMax, plus a
// random jitter of up to half that delay.
func (w *Worker) retryBackoff(attempts int) time.Duration {
	base := w.config.RetryBackoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	maxDelay := w.config.RetryBackoffMax
	if maxDelay <= 0 {
		maxDelay = 2 * time.Minute
	}
	shift := attempts
	if shift > 10 {
		shift = 10
	}
	d := base * time.Duration(1<<shift)
	if d <= 0 || d > maxDelay {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d + jitter
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}
