package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradeflow/gradeflow/pkg/config"
)

// RubricGroundingCriterionInput is one criterion as declared on the exam,
// the only form the RubricGrounding agent sees — it is the sole agent that
// looks at the rubric in isolation; everything downstream receives the
// grounded form.
type RubricGroundingCriterionInput struct {
	CriterionID string
	Description string
	MaxMarks    float64
}

// RubricGroundingInput is one question's full criteria list.
type RubricGroundingInput struct {
	QuestionID string
	PromptText string
	MaxMarks   float64
	Criteria   []RubricGroundingCriterionInput
}

// GroundedCriterion is one criterion after grounding: the evidence points a
// Scoring call should look for, and whether the rubric wording itself is
// ambiguous enough to force a review regardless of scores.
type GroundedCriterion struct {
	CriterionID      string   `json:"criterion_id"`
	RequiredEvidence []string `json:"required_evidence"`
	IsAmbiguous      bool     `json:"is_ambiguous"`
}

// GroundedRubricOutput is the RubricGrounding agent's output.
type GroundedRubricOutput struct {
	Criteria             []GroundedCriterion `json:"criteria"`
	GroundingConfidence  float64             `json:"grounding_confidence"`
	declaredCriterionIDs map[string]bool
}

// Validate enforces that every declared criterion is grounded exactly once
// and the confidence scalar is in range.
func (o *GroundedRubricOutput) Validate() error {
	if o.GroundingConfidence < 0 || o.GroundingConfidence > 1 {
		return fmt.Errorf("grounding_confidence %.3f out of [0,1]", o.GroundingConfidence)
	}
	seen := make(map[string]bool, len(o.Criteria))
	for _, c := range o.Criteria {
		if !o.declaredCriterionIDs[c.CriterionID] {
			return fmt.Errorf("criterion %q is not part of this question's rubric", c.CriterionID)
		}
		if seen[c.CriterionID] {
			return fmt.Errorf("criterion %q grounded more than once", c.CriterionID)
		}
		seen[c.CriterionID] = true
	}
	for id := range o.declaredCriterionIDs {
		if !seen[id] {
			return fmt.Errorf("criterion %q missing from grounded rubric", id)
		}
	}
	return nil
}

// SchemaHint returns the expected JSON shape, shown to the model again on repair.
func (o *GroundedRubricOutput) SchemaHint() string {
	return `{"criteria": [{"criterion_id": "...", "required_evidence": ["..."], "is_ambiguous": false}], "grounding_confidence": 0.0}`
}

// RubricGroundingAgent wraps the Runtime with this agent's prompt and schema.
type RubricGroundingAgent struct {
	runtime  *Runtime
	provider *config.LLMProviderConfig
}

func NewRubricGroundingAgent(runtime *Runtime, provider *config.LLMProviderConfig) *RubricGroundingAgent {
	return &RubricGroundingAgent{runtime: runtime, provider: provider}
}

func (a *RubricGroundingAgent) Execute(ctx context.Context, runID, taskID string, input RubricGroundingInput) (*GroundedRubricOutput, Telemetry, error) {
	declared := make(map[string]bool, len(input.Criteria))
	for _, c := range input.Criteria {
		declared[c.CriterionID] = true
	}
	out := &GroundedRubricOutput{declaredCriterionIDs: declared}
	telemetry, err := a.runtime.Run(ctx, "rubric_grounding", runID, taskID, a.provider, rubricGroundingPrompt{}, input, out)
	return out, telemetry, err
}

type rubricGroundingPrompt struct{}

func (rubricGroundingPrompt) Render(input any) (string, string) {
	in := input.(RubricGroundingInput)
	var b strings.Builder
	fmt.Fprintf(&b, "Question (max marks %.2f): %s\n\nRubric criteria:\n", in.MaxMarks, in.PromptText)
	for _, c := range in.Criteria {
		fmt.Fprintf(&b, "- %s (max %.2f): %s\n", c.CriterionID, c.MaxMarks, c.Description)
	}
	b.WriteString("\nFor each criterion, list the concrete evidence points a grader should " +
		"look for in a student's answer to award full marks, and flag is_ambiguous=true if " +
		"the rubric wording itself is unclear enough that two graders could reasonably " +
		"disagree on what counts as evidence. Ground every criterion exactly once, using " +
		"only the criterion-ids given above.\n\n" +
		`Respond with JSON: {"criteria": [{"criterion_id": "...", "required_evidence": ["..."], "is_ambiguous": false}], "grounding_confidence": 0.0}`)
	return rubricGroundingSystemPrompt, b.String()
}

const rubricGroundingSystemPrompt = "You are an exam rubric analyst. You ground a marking rubric into " +
	"concrete, checkable evidence points before any answer is scored. You never award marks yourself."
