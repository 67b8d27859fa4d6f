package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gradeflow/gradeflow/pkg/agent"
	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowGateway echoes back whichever criterion_id the scoring prompt names,
// with a fixed valid response, after a configurable delay — so tests can
// assert on concurrency behavior and per-criterion identity together.
type slowGateway struct {
	delay time.Duration
}

func (g *slowGateway) TextComplete(ctx context.Context, req *llmgateway.Request) (*llmgateway.Completion, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	id := criterionIDFromPrompt(req)
	return &llmgateway.Completion{Raw: fmt.Sprintf(
		`{"criterion_id": %q, "marks_awarded": 1.0, "quote": "", "reason": "ok", "confidence": 0.9}`, id,
	)}, nil
}

func criterionIDFromPrompt(req *llmgateway.Request) string {
	for _, m := range req.Messages {
		if m.Role != llmgateway.RoleUser {
			continue
		}
		const marker = "criterion_id \""
		i := strings.Index(m.Content, marker)
		if i < 0 {
			continue
		}
		rest := m.Content[i+len(marker):]
		if j := strings.Index(rest, "\""); j >= 0 {
			return rest[:j]
		}
	}
	return ""
}
func (g *slowGateway) VisionComplete(context.Context, *llmgateway.Request) (*llmgateway.Completion, error) {
	panic("not used")
}
func (g *slowGateway) Close() error { return nil }

func TestScoringRunner_RunAll_RespectsConcurrencyCapAndReturnsAllResults(t *testing.T) {
	rt := agent.NewRuntime(&slowGateway{delay: 10 * time.Millisecond}, 0, 0.1)
	scorer := agent.NewScoringAgent(rt, &config.LLMProviderConfig{})
	runner := NewScoringRunner(scorer, 2)

	inputs := make([]agent.ScoringInput, 5)
	for i := range inputs {
		inputs[i] = agent.ScoringInput{CriterionID: fmt.Sprintf("c%d", i), AnswerText: "answer", CriterionMaxMarks: 5}
	}

	results, err := runner.RunAll(context.Background(), "run-1", "score", inputs)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("c%d", i), r.CriterionID)
	}
}

func TestScoringRunner_Dispatch_RejectsBeyondCap(t *testing.T) {
	rt := agent.NewRuntime(&slowGateway{delay: 50 * time.Millisecond}, 0, 0.1)
	scorer := agent.NewScoringAgent(rt, &config.LLMProviderConfig{})
	runner := NewScoringRunner(scorer, 1)

	input := agent.ScoringInput{CriterionID: "c", AnswerText: "answer", CriterionMaxMarks: 5}
	require.NoError(t, runner.Dispatch(context.Background(), "run-1", "score", input))

	err := runner.Dispatch(context.Background(), "run-1", "score", input)
	assert.ErrorIs(t, err, ErrMaxConcurrentCriteria)

	_, _ = runner.Collect(context.Background())
}
