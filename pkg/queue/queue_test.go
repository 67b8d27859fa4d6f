package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestEntClient(t *testing.T) *ent.Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	drv, err := sql.Open(dialect.Postgres, connStr)
	require.NoError(t, err)

	client := ent.NewClient(ent.Driver(drv))
	require.NoError(t, client.Schema.Create(ctx))
	t.Cleanup(func() { _ = client.Close() })

	return client
}

type recordingExecutor struct {
	executed chan *ent.TaskRecord
	result   *ExecutionResult
}

func (e *recordingExecutor) Execute(_ context.Context, task *ent.TaskRecord) *ExecutionResult {
	e.executed <- task
	return e.result
}

func TestWorker_ClaimsAndCompletesTask(t *testing.T) {
	client := newTestEntClient(t)
	ctx := context.Background()

	_, err := client.TaskRecord.Create().
		SetID("task-1").
		SetQueue("evaluation").
		SetTaskName("score_answer").
		SetPayload(map[string]interface{}{"script_answer_id": "sa-1"}).
		SetDedupeKey("score_answer:sa-1:run-1").
		Save(ctx)
	require.NoError(t, err)

	cfg := config.DefaultQueueConfig()
	cfg.WorkerCount = 1
	cfg.PollInterval = 10 * time.Millisecond
	cfg.TaskTimeout = 5 * time.Second

	executor := &recordingExecutor{
		executed: make(chan *ent.TaskRecord, 1),
		result:   &ExecutionResult{Status: taskrecord.StatusCompleted},
	}

	pool := NewWorkerPool("test-pod", "evaluation", client, cfg, executor)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, pool.Start(runCtx))
	defer pool.Stop()

	select {
	case claimed := <-executor.executed:
		assert.Equal(t, "task-1", claimed.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("task was never claimed")
	}

	require.Eventually(t, func() bool {
		task, err := client.TaskRecord.Get(ctx, "task-1")
		require.NoError(t, err)
		return task.Status == taskrecord.StatusCompleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkerPool_DetectAndRecoverOrphans(t *testing.T) {
	client := newTestEntClient(t)
	ctx := context.Background()

	stale := time.Now().Add(-10 * time.Minute)
	_, err := client.TaskRecord.Create().
		SetID("task-orphan").
		SetQueue("ocr").
		SetTaskName("extract_page").
		SetDedupeKey("extract_page:upload-1:1").
		SetStatus(taskrecord.StatusRunning).
		SetClaimedBy("dead-pod").
		SetLastInteractionAt(stale).
		Save(ctx)
	require.NoError(t, err)

	cfg := config.DefaultQueueConfig()
	cfg.OrphanThreshold = time.Minute

	pool := NewWorkerPool("test-pod", "ocr", client, cfg, nil)
	require.NoError(t, pool.detectAndRecoverOrphans(ctx))

	task, err := client.TaskRecord.Get(ctx, "task-orphan")
	require.NoError(t, err)
	assert.Equal(t, taskrecord.StatusPending, task.Status)
	assert.Nil(t, task.ClaimedBy)
}

func TestWorkerPool_OrphanExceedsRetryLimitMarkedFailed(t *testing.T) {
	client := newTestEntClient(t)
	ctx := context.Background()

	stale := time.Now().Add(-10 * time.Minute)
	_, err := client.TaskRecord.Create().
		SetID("task-orphan-exhausted").
		SetQueue("ocr").
		SetTaskName("extract_page").
		SetDedupeKey("extract_page:upload-2:1").
		SetStatus(taskrecord.StatusRunning).
		SetClaimedBy("dead-pod").
		SetLastInteractionAt(stale).
		SetAttempts(5).
		Save(ctx)
	require.NoError(t, err)

	cfg := config.DefaultQueueConfig()
	cfg.OrphanThreshold = time.Minute

	pool := NewWorkerPool("test-pod", "ocr", client, cfg, nil)
	require.NoError(t, pool.detectAndRecoverOrphans(ctx))

	task, err := client.TaskRecord.Get(ctx, "task-orphan-exhausted")
	require.NoError(t, err)
	assert.Equal(t, taskrecord.StatusFailed, task.Status)
}

func TestWorker_UpdateTaskTerminalStatus_RetryableFailureReenqueues(t *testing.T) {
	client := newTestEntClient(t)
	ctx := context.Background()

	task, err := client.TaskRecord.Create().
		SetID("task-retry").
		SetQueue("evaluation").
		SetTaskName("evaluate_question").
		SetPayload(map[string]interface{}{}).
		SetDedupeKey("evaluate_question:retry").
		SetStatus(taskrecord.StatusRunning).
		SetClaimedBy("pod-1").
		AddAttempts(1).
		Save(ctx)
	require.NoError(t, err)

	cfg := config.DefaultQueueConfig()
	cfg.RetryBackoffBase = 10 * time.Millisecond
	cfg.RetryBackoffMax = 50 * time.Millisecond
	w := &Worker{client: client, config: cfg}

	retryErr := coreerrors.NewTaskError(coreerrors.KindLLMUnavailable, "evaluate_question", errors.New("gateway down"), nil)
	result := &ExecutionResult{Status: taskrecord.StatusFailed, Error: retryErr}

	require.NoError(t, w.updateTaskTerminalStatus(ctx, task, result))

	updated, err := client.TaskRecord.Get(ctx, "task-retry")
	require.NoError(t, err)
	assert.Equal(t, taskrecord.StatusPending, updated.Status)
	assert.Nil(t, updated.ClaimedBy)
	assert.True(t, updated.AvailableAt.After(time.Now()))
}

func TestWorker_UpdateTaskTerminalStatus_ExhaustedAttemptsFails(t *testing.T) {
	client := newTestEntClient(t)
	ctx := context.Background()

	task, err := client.TaskRecord.Create().
		SetID("task-retry-exhausted").
		SetQueue("evaluation").
		SetTaskName("evaluate_question").
		SetPayload(map[string]interface{}{}).
		SetDedupeKey("evaluate_question:retry-exhausted").
		SetStatus(taskrecord.StatusRunning).
		AddAttempts(3).
		Save(ctx)
	require.NoError(t, err)

	cfg := config.DefaultQueueConfig()
	cfg.MaxTaskAttempts = 3
	w := &Worker{client: client, config: cfg}

	retryErr := coreerrors.NewTaskError(coreerrors.KindLLMUnavailable, "evaluate_question", errors.New("gateway down"), nil)
	result := &ExecutionResult{Status: taskrecord.StatusFailed, Error: retryErr}

	require.NoError(t, w.updateTaskTerminalStatus(ctx, task, result))

	updated, err := client.TaskRecord.Get(ctx, "task-retry-exhausted")
	require.NoError(t, err)
	assert.Equal(t, taskrecord.StatusFailed, updated.Status)
}

func TestWorker_UpdateTaskTerminalStatus_NonRetryableFailsImmediately(t *testing.T) {
	client := newTestEntClient(t)
	ctx := context.Background()

	task, err := client.TaskRecord.Create().
		SetID("task-malformed").
		SetQueue("evaluation").
		SetTaskName("evaluate_question").
		SetPayload(map[string]interface{}{}).
		SetDedupeKey("evaluate_question:malformed").
		SetStatus(taskrecord.StatusRunning).
		Save(ctx)
	require.NoError(t, err)

	cfg := config.DefaultQueueConfig()
	w := &Worker{client: client, config: cfg}

	malformedErr := coreerrors.NewTaskError(coreerrors.KindLLMMalformed, "evaluate_question", errors.New("bad json"), nil)
	result := &ExecutionResult{Status: taskrecord.StatusFailed, Error: malformedErr}

	require.NoError(t, w.updateTaskTerminalStatus(ctx, task, result))

	updated, err := client.TaskRecord.Get(ctx, "task-malformed")
	require.NoError(t, err)
	assert.Equal(t, taskrecord.StatusFailed, updated.Status)
}
