// Package queue provides task queue management and processing infrastructure.
// Work is modeled as rows in the task_records table, claimed with
// SELECT ... FOR UPDATE SKIP LOCKED so any number of pods can poll the same
// queue without a separate broker.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
)

// Sentinel errors for queue operations.
var (
	// ErrNoTasksAvailable indicates no claimable tasks are in the queue.
	ErrNoTasksAvailable = errors.New("no tasks available")

	// ErrAtCapacity indicates the global concurrent task limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// TaskExecutor processes a single claimed task to completion.
//
// The executor owns the task's outcome entirely: on return, the worker only
// persists status/attempts/last_error bookkeeping on the TaskRecord itself.
// Any domain side effects (writing an EvaluationResult, advancing a
// FanInGate, enqueuing a continuation task) must be written by the executor
// before it returns, since a worker crash after Execute returns but before
// the terminal status commit would otherwise replay those side effects.
type TaskExecutor interface {
	Execute(ctx context.Context, task *ent.TaskRecord) *ExecutionResult
}

// ExecutionResult is the terminal state of a task run.
type ExecutionResult struct {
	Status taskrecord.Status // completed, failed
	Error  error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveTasks      int            `json:"active_tasks"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"` // "idle" or "working"
	CurrentTaskID  string    `json:"current_task_id,omitempty"`
	TasksProcessed int       `json:"tasks_processed"`
	LastActivity   time.Time `json:"last_activity"`
}
