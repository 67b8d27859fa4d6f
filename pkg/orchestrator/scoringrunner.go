// Package orchestrator registers one task handler per task name against the
// queue dispatcher and implements the fan-out/fan-in mechanics of spec.md
// §4.6: criterion-level scoring concurrency, OCR page aggregation, and
// per-script evaluation aggregation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gradeflow/gradeflow/pkg/agent"
)

// ErrMaxConcurrentCriteria is returned by Dispatch when the runner is
// already scoring ScoringConcurrencyCap criteria and cannot reserve another
// slot.
var ErrMaxConcurrentCriteria = errors.New("max concurrent scoring calls exceeded")

// CriterionResult is one criterion's scoring outcome, delivered to the
// caller over ScoringRunner's results channel.
type CriterionResult struct {
	CriterionID string
	Score       *agent.CriterionScoreOutput
	Telemetry   agent.Telemetry
	Err         error
}

// ScoringRunner fans a question's criteria out to the Scoring agent with a
// concurrency cap and collects results on a buffered channel, grounded on
// pkg/agent/orchestrator/runner.go's SubAgentRunner dispatch/collect
// pattern — narrowed to this pipeline's single use case (no MCP tool
// routing, no timeline events, no per-call DB execution rows: the
// orchestrator persists only the final CriterionScore rows once scoring
// completes).
type ScoringRunner struct {
	scorer      *agent.ScoringAgent
	concurrency int

	mu       sync.Mutex
	reserved int
	active   int

	resultsCh chan CriterionResult
	pending   int32
}

// NewScoringRunner constructs a ScoringRunner capped at concurrency
// simultaneous Scoring agent calls (spec.md §5, default
// config.Defaults.ScoringConcurrencyCap).
func NewScoringRunner(scorer *agent.ScoringAgent, concurrency int) *ScoringRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ScoringRunner{
		scorer:      scorer,
		concurrency: concurrency,
		resultsCh:   make(chan CriterionResult, concurrency),
	}
}

// Dispatch reserves a concurrency slot and launches the criterion's Scoring
// call in its own goroutine. It returns ErrMaxConcurrentCriteria
// immediately (no blocking) if the cap is already reached — callers are
// expected to retry once a slot frees via TryCollect/Collect.
func (r *ScoringRunner) Dispatch(ctx context.Context, runID, taskID string, input agent.ScoringInput) error {
	r.mu.Lock()
	if r.active+r.reserved >= r.concurrency {
		r.mu.Unlock()
		return ErrMaxConcurrentCriteria
	}
	r.reserved++
	r.mu.Unlock()

	atomic.AddInt32(&r.pending, 1)
	go r.runCriterion(ctx, runID, taskID, input)
	return nil
}

func (r *ScoringRunner) runCriterion(ctx context.Context, runID, taskID string, input agent.ScoringInput) {
	r.mu.Lock()
	r.reserved--
	r.active++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
		atomic.AddInt32(&r.pending, -1)
	}()

	score, telemetry, err := r.scorer.Execute(ctx, runID, fmt.Sprintf("%s:%s", taskID, input.CriterionID), input)
	r.resultsCh <- CriterionResult{CriterionID: input.CriterionID, Score: score, Telemetry: telemetry, Err: err}
}

// TryCollect returns the next available result without blocking, or false
// if none is ready yet.
func (r *ScoringRunner) TryCollect() (CriterionResult, bool) {
	select {
	case res := <-r.resultsCh:
		return res, true
	default:
		return CriterionResult{}, false
	}
}

// Collect blocks until a result is available or ctx is cancelled.
func (r *ScoringRunner) Collect(ctx context.Context) (CriterionResult, error) {
	select {
	case res := <-r.resultsCh:
		return res, nil
	case <-ctx.Done():
		return CriterionResult{}, ctx.Err()
	}
}

// HasPending reports whether any dispatched criterion has not yet
// delivered its result.
func (r *ScoringRunner) HasPending() bool {
	return atomic.LoadInt32(&r.pending) > 0
}

// RunAll dispatches every input sequentially (re-trying Dispatch under
// concurrency pressure by draining a result first) and blocks until all
// results are collected, returning them in input order. This is the
// entry point the evaluate_question task handler uses (through
// runEvaluationPipeline): it does not need
// fire-and-forget semantics, only bounded parallelism.
func (r *ScoringRunner) RunAll(ctx context.Context, runID, taskID string, inputs []agent.ScoringInput) ([]CriterionResult, error) {
	results := make(map[string]CriterionResult, len(inputs))
	order := make([]string, len(inputs))
	for i, in := range inputs {
		order[i] = in.CriterionID
	}

	i := 0
	for len(results) < len(inputs) {
		if i < len(inputs) {
			err := r.Dispatch(ctx, runID, taskID, inputs[i])
			if err == nil {
				i++
				continue
			}
			if !errors.Is(err, ErrMaxConcurrentCriteria) {
				return nil, err
			}
			// fall through to drain a slot
		}

		res, err := r.Collect(ctx)
		if err != nil {
			return nil, err
		}
		results[res.CriterionID] = res
	}

	ordered := make([]CriterionResult, len(order))
	for idx, id := range order {
		ordered[idx] = results[id]
	}
	return ordered, nil
}
