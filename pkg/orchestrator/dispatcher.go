package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/pkg/agent"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
	"github.com/gradeflow/gradeflow/pkg/ocr"
	"github.com/gradeflow/gradeflow/pkg/queue"
	"github.com/gradeflow/gradeflow/pkg/segmenter"
	"github.com/gradeflow/gradeflow/pkg/storage"
)

// TaskHandler processes one claimed task and returns its terminal outcome.
// Handlers own all domain side effects (writing entity rows, advancing fan-in
// gates, enqueuing continuations) before returning, per queue.TaskExecutor's
// contract.
type TaskHandler func(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult

// Deps bundles every collaborator a task handler needs. A single Deps is
// shared read-only across all handlers and goroutines.
type Deps struct {
	Client    *ent.Client
	Storage   storage.Provider
	OCR       *ocr.Provider
	Segmenter *segmenter.Segmenter

	RubricGrounding *agent.RubricGroundingAgent
	Scoring         *agent.ScoringAgent
	Consistency     *agent.ConsistencyAgent
	Feedback        *agent.FeedbackAgent
	Explainability  *agent.ExplainabilityAgent

	ScoringConcurrency int
	PageLimit          int

	// Budget tracks cumulative per-run token spend in Redis (spec.md §4.1,
	// §6's "token budget per evaluation"). Nil disables enforcement.
	Budget            *llmgateway.BudgetTracker
	TokenBudgetPerRun int
}

// Dispatcher implements queue.TaskExecutor, routing each claimed TaskRecord
// to the handler registered for its task_name — the single TaskExecutor the
// queue package's WorkerPool is configured with, per SPEC_FULL.md §4.6.
type Dispatcher struct {
	deps     *Deps
	handlers map[string]TaskHandler
	logger   *slog.Logger
}

// NewDispatcher registers one handler per task name in spec.md §4.6's table.
func NewDispatcher(deps *Deps, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{deps: deps, logger: logger, handlers: map[string]TaskHandler{}}
	d.handlers["ingest"] = d.handleIngest
	d.handlers["ocr"] = d.handleOCR
	d.handlers["ocr_page"] = d.handleOCRPage
	d.handlers["ocr_aggregate"] = d.handleOCRAggregate
	d.handlers["segment"] = d.handleSegment
	d.handlers["evaluate_script"] = d.handleEvaluateScript
	d.handlers["evaluate_question"] = d.handleEvaluateQuestion
	return d
}

// Execute implements queue.TaskExecutor.
func (d *Dispatcher) Execute(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	handler, ok := d.handlers[task.TaskName]
	if !ok {
		return &queue.ExecutionResult{Status: taskrecord.StatusFailed, Error: errors.New("no handler registered for task_name " + task.TaskName)}
	}

	result := handler(ctx, task)

	if result.Status == taskrecord.StatusFailed && coreerrors.IsRetryable(kindOf(result.Error)) {
		d.logger.Warn("task failed retryably", "task_name", task.TaskName, "task_id", task.ID, "error", result.Error)
	}
	return result
}

// kindOf extracts the coreerrors.Kind from a wrapped TaskError, defaulting
// to a non-retryable kind when the error wasn't classified (a handler bug,
// not a domain outcome — treated conservatively as non-retryable).
func kindOf(err error) coreerrors.Kind {
	var taskErr *coreerrors.TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Kind
	}
	return coreerrors.KindInvariantViolation
}
