package config

import "time"

// QueueConfig contains queue and worker pool configuration shared by the
// named queues (default, ocr, evaluation). These values control how tasks
// are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per queue, per replica.
	// Each worker independently polls and processes tasks.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentTasks is the global limit of concurrent tasks being
	// processed across ALL replicas for a queue. Enforced by a database
	// COUNT(*) check at claim time.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`

	// PollInterval is the base interval for checking pending tasks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// TaskTimeout is the maximum time a single task may run before its
	// context is cancelled.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active tasks to
	// complete during shutdown. Should match TaskTimeout.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for orphaned tasks.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a task can go without a heartbeat before
	// it is considered orphaned and reclaimed.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// MaxTaskAttempts bounds how many times a task that fails with a
	// retryable error kind (LLM_UNAVAILABLE) is re-enqueued before it is
	// terminally failed, per spec.md §4.6/§7.
	MaxTaskAttempts int `yaml:"max_task_attempts"`

	// RetryBackoffBase is the delay before the first retry of a retryably
	// failed task; doubles per subsequent attempt up to RetryBackoffMax.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`

	// RetryBackoffMax caps the exponential retry delay.
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentTasks:      10,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		TaskTimeout:             5 * time.Minute,
		GracefulShutdownTimeout: 5 * time.Minute,
		OrphanDetectionInterval: 2 * time.Minute,
		OrphanThreshold:         3 * time.Minute,
		MaxTaskAttempts:         3,
		RetryBackoffBase:        2 * time.Second,
		RetryBackoffMax:         2 * time.Minute,
	}
}
