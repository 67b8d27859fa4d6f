package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGateway struct {
	responses []string
	err       error
	calls     int
}

func (g *scriptedGateway) TextComplete(context.Context, *llmgateway.Request) (*llmgateway.Completion, error) {
	if g.err != nil {
		return nil, g.err
	}
	raw := g.responses[g.calls]
	g.calls++
	return &llmgateway.Completion{Raw: raw}, nil
}
func (g *scriptedGateway) VisionComplete(context.Context, *llmgateway.Request) (*llmgateway.Completion, error) {
	panic("not used")
}
func (g *scriptedGateway) Close() error { return nil }

type echoPrompt struct{}

func (echoPrompt) Render(input any) (string, string) { return "system", "user" }

type fixedSchema struct {
	valid bool
	Field string `json:"field"`
}

func (f *fixedSchema) Validate() error {
	if !f.valid {
		return errors.New("rejected")
	}
	return nil
}

func (f *fixedSchema) SchemaHint() string { return `{"field": "..."}` }

func TestRuntime_Run_SucceedsOnFirstTry(t *testing.T) {
	gw := &scriptedGateway{responses: []string{`{"field": "ok"}`}}
	rt := NewRuntime(gw, 1, 0.1)

	out := &fixedSchema{valid: true}
	telemetry, err := rt.Run(context.Background(), "scoring", "run-1", "task-1", &config.LLMProviderConfig{Model: "m"}, echoPrompt{}, nil, out)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, telemetry.Status)
	assert.Equal(t, 0, telemetry.RetryCount)
	assert.Equal(t, 1, gw.calls)
}

func TestRuntime_Run_RepairsOnValidationFailureThenSucceeds(t *testing.T) {
	gw := &scriptedGateway{responses: []string{`{"field": "bad"}`, `{"field": "good"}`}}
	rt := NewRuntime(gw, 1, 0.1)

	// Validate fails on its first call and passes on its second, forcing one repair
	out := &validatingOnSecondCall{}
	telemetry, err := rt.Run(context.Background(), "scoring", "run-1", "task-1", &config.LLMProviderConfig{}, echoPrompt{}, nil, out)

	require.NoError(t, err)
	assert.Equal(t, 1, telemetry.RetryCount)
	assert.Equal(t, 2, gw.calls)
}

type validatingOnSecondCall struct {
	Field string `json:"field"`
	seen  int
}

func (v *validatingOnSecondCall) Validate() error {
	v.seen++
	if v.seen < 2 {
		return errors.New("not yet")
	}
	return nil
}

func (v *validatingOnSecondCall) SchemaHint() string { return `{"field": "..."}` }

func TestRuntime_Run_ExhaustsRepairBudgetReturnsError(t *testing.T) {
	gw := &scriptedGateway{responses: []string{`{"field": "a"}`, `{"field": "b"}`}}
	rt := NewRuntime(gw, 1, 0.1)

	out := &fixedSchema{valid: false}
	_, err := rt.Run(context.Background(), "scoring", "run-1", "task-1", &config.LLMProviderConfig{}, echoPrompt{}, nil, out)

	require.Error(t, err)
	assert.Equal(t, 2, gw.calls)
}

func TestRuntime_Run_TransportFailureIsNotRetried(t *testing.T) {
	gw := &scriptedGateway{err: errors.New("gateway down")}
	rt := NewRuntime(gw, 1, 0.1)

	out := &fixedSchema{valid: true}
	telemetry, err := rt.Run(context.Background(), "scoring", "run-1", "task-1", &config.LLMProviderConfig{}, echoPrompt{}, nil, out)

	require.Error(t, err)
	assert.Equal(t, StatusFailed, telemetry.Status)
}
