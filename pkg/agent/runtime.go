// Package agent provides the generic runtime shared by all five evaluation
// agents (RubricGrounding, Scoring, Consistency, Feedback, Explainability).
// Each agent supplies a prompt template and a typed output schema; the
// runtime owns rendering, the LLM call, schema validation, repair-on-
// failure, and telemetry — grounded on the same render→call→validate→
// repair→telemetry shape the teacher's BaseAgent/Controller pair
// implements for its investigation agents.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
)

// Status mirrors the teacher's ExecutionStatus, narrowed to the outcomes an
// evaluation agent call can actually reach (no "active"/"pending" — a
// runtime call is synchronous from the caller's point of view).
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Telemetry is emitted once per Run call, win or lose.
type Telemetry struct {
	AgentName  string
	Model      string
	Status     Status
	Latency    time.Duration
	Usage      llmgateway.TokenUsage
	RetryCount int
}

// Schema is implemented by each agent's typed output struct. Validate runs
// after json.Unmarshal succeeds and enforces field-level invariants (marks
// granularity, quote-is-substring, enum membership) the way spec.md §9
// calls for — a typed check per agent, not a generic JSON-schema validator.
// SchemaHint returns the JSON shape silhouette shown to the model on a
// repair attempt, e.g. `{"criterion_id": "...", "marks_awarded": 0.0}`.
type Schema interface {
	Validate() error
	SchemaHint() string
}

// PromptTemplate renders an agent's system/user messages against its typed input.
type PromptTemplate interface {
	Render(input any) (system string, user string)
}

// Runtime wraps the LLM Gateway with the render→call→validate→repair→
// telemetry sequence common to every evaluation agent.
type Runtime struct {
	gateway           llmgateway.Gateway
	maxRepairAttempts int
	temperature       float64
}

// NewRuntime constructs a Runtime. temperature defaults to 0.1 per spec §4.4
// if the caller passes 0.
func NewRuntime(gateway llmgateway.Gateway, maxRepairAttempts int, temperature float64) *Runtime {
	if temperature == 0 {
		temperature = 0.1
	}
	return &Runtime{gateway: gateway, maxRepairAttempts: maxRepairAttempts, temperature: temperature}
}

// Run executes one agent call: render, text-complete, validate, repair on
// failure, telemetry. out must be a pointer to a Schema implementation;
// Run unmarshals into it and calls Validate().
func (r *Runtime) Run(ctx context.Context, agentName, runID, taskID string, provider *config.LLMProviderConfig, tmpl PromptTemplate, input any, out Schema) (Telemetry, error) {
	start := time.Now()
	system, user := tmpl.Render(input)

	var lastErr error
	var usage llmgateway.TokenUsage
	retries := 0
	prompt := llmgateway.PromptPair{System: system, User: user}

	for attempt := 0; attempt <= r.maxRepairAttempts; attempt++ {
		req := &llmgateway.Request{
			RunID:       runID,
			TaskID:      taskID,
			Provider:    provider,
			Temperature: r.temperature,
			Messages: []llmgateway.Message{
				{Role: llmgateway.RoleSystem, Content: prompt.System},
				{Role: llmgateway.RoleUser, Content: prompt.User},
			},
		}

		completion, err := r.gateway.TextComplete(ctx, req)
		if err != nil {
			telemetry := Telemetry{AgentName: agentName, Status: statusFromErr(err), Latency: time.Since(start), RetryCount: retries}
			return telemetry, err
		}
		usage = completion.Usage

		if err := completion.Parsed(out); err != nil {
			lastErr = err
			retries++
			prompt = llmgateway.RepairPrompt(prompt, err, out.SchemaHint(), retries)
			continue
		}

		if err := out.Validate(); err != nil {
			lastErr = err
			retries++
			prompt = llmgateway.RepairPrompt(prompt, err, out.SchemaHint(), retries)
			continue
		}

		return Telemetry{
			AgentName:  agentName,
			Model:      provider.Model,
			Status:     StatusCompleted,
			Latency:    time.Since(start),
			Usage:      usage,
			RetryCount: retries,
		}, nil
	}

	telemetry := Telemetry{AgentName: agentName, Status: StatusFailed, Latency: time.Since(start), Usage: usage, RetryCount: retries}
	return telemetry, fmt.Errorf("%w: %v", coreerrors.ErrLLMMalformed, lastErr)
}

func statusFromErr(err error) Status {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimedOut
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}
