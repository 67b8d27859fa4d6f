package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradeflow/gradeflow/pkg/config"
)

// ConsistencyScoreInput is one scored criterion as the Consistency agent
// receives it — the initial Scoring agent's output, not yet audited.
type ConsistencyScoreInput struct {
	CriterionID  string
	Description  string
	MaxMarks     float64
	MarksAwarded float64
	Quote        string
	Reason       string
}

// ConsistencyInput is the full per-question package the audit runs over.
type ConsistencyInput struct {
	QuestionText string
	AnswerText   string
	Scores       []ConsistencyScoreInput
}

// ConsistencyAdjustment records one score the audit chose to change, for
// auditability even when the overall assessment is otherwise consistent.
type ConsistencyAdjustment struct {
	CriterionID      string  `json:"criterion_id"`
	OriginalScore    float64 `json:"original_score"`
	RecommendedScore float64 `json:"recommended_score"`
	Reason           string  `json:"reason"`
}

// ConsistencyAuditOutput is the Consistency agent's output. FinalScores is
// canonical — TotalScore is reconciled to equal its sum by Reconcile, never
// trusted from the model directly.
type ConsistencyAuditOutput struct {
	OverallAssessment string                  `json:"overall_assessment"`
	Adjustments       []ConsistencyAdjustment `json:"adjustments"`
	FinalScores       map[string]float64      `json:"final_scores"`
	TotalScore        float64                 `json:"total_score"`
	Notes             string                  `json:"notes"`
	declaredCriteria  map[string]float64
}

var validOverallAssessments = map[string]bool{
	"CONSISTENT":         true,
	"MINOR_ISSUES":       true,
	"SIGNIFICANT_ISSUES": true,
}

// Validate enforces the overall-assessment enum and that every scored
// criterion has a final score within its bounds; it does not check
// TotalScore — Reconcile owns that invariant since spec.md §4.5 says
// implementations must trust final-scores and overwrite total on drift.
func (o *ConsistencyAuditOutput) Validate() error {
	if !validOverallAssessments[o.OverallAssessment] {
		return fmt.Errorf("overall_assessment %q is not one of CONSISTENT, MINOR_ISSUES, SIGNIFICANT_ISSUES", o.OverallAssessment)
	}
	for id, max := range o.declaredCriteria {
		score, ok := o.FinalScores[id]
		if !ok {
			return fmt.Errorf("final_scores missing criterion %q", id)
		}
		if score < 0 || score > max {
			return fmt.Errorf("final score for %q is %.2f, out of [0, %.2f]", id, score, max)
		}
	}
	for id := range o.FinalScores {
		if _, ok := o.declaredCriteria[id]; !ok {
			return fmt.Errorf("final_scores names unknown criterion %q", id)
		}
	}
	return nil
}

// SchemaHint returns the expected JSON shape, shown to the model again on repair.
func (o *ConsistencyAuditOutput) SchemaHint() string {
	return `{"overall_assessment": "CONSISTENT|MINOR_ISSUES|SIGNIFICANT_ISSUES", ` +
		`"adjustments": [{"criterion_id": "...", "original_score": 0.0, "recommended_score": 0.0, "reason": "..."}], ` +
		`"final_scores": {"criterion_id": 0.0}, "total_score": 0.0, "notes": "..."}`
}

// Reconcile overwrites TotalScore with the sum of FinalScores, per spec.md
// §4.5: "implementations reconcile any drift by trusting final-scores and
// overwriting total."
func (o *ConsistencyAuditOutput) Reconcile() {
	var total float64
	for _, v := range o.FinalScores {
		total += v
	}
	o.TotalScore = total
}

// ConsistencyAgent wraps the Runtime with this agent's prompt and schema.
type ConsistencyAgent struct {
	runtime  *Runtime
	provider *config.LLMProviderConfig
}

func NewConsistencyAgent(runtime *Runtime, provider *config.LLMProviderConfig) *ConsistencyAgent {
	return &ConsistencyAgent{runtime: runtime, provider: provider}
}

func (a *ConsistencyAgent) Execute(ctx context.Context, runID, taskID string, input ConsistencyInput) (*ConsistencyAuditOutput, Telemetry, error) {
	declared := make(map[string]float64, len(input.Scores))
	for _, s := range input.Scores {
		declared[s.CriterionID] = s.MaxMarks
	}
	out := &ConsistencyAuditOutput{declaredCriteria: declared}
	telemetry, err := a.runtime.Run(ctx, "consistency", runID, taskID, a.provider, consistencyPrompt{}, input, out)
	if err == nil {
		out.Reconcile()
	}
	return out, telemetry, err
}

type consistencyPrompt struct{}

func (consistencyPrompt) Render(input any) (string, string) {
	in := input.(ConsistencyInput)
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nStudent answer:\n%s\n\nInitial per-criterion scores:\n", in.QuestionText, in.AnswerText)
	for _, s := range in.Scores {
		fmt.Fprintf(&b, "- %s (max %.2f, awarded %.2f): %s — cited: %q\n", s.CriterionID, s.MaxMarks, s.MarksAwarded, s.Reason, s.Quote)
	}
	b.WriteString("\nAudit these scores for cross-criterion coherence, score-to-justification " +
		"alignment, generosity or harshness bias, and double-counted evidence. You may adjust " +
		"any score you find unjustified; your final_scores are authoritative regardless of the " +
		"initial awards above. Include every criterion-id in final_scores exactly once, using " +
		"the original score unchanged where you make no adjustment.\n\n" +
		`Respond with JSON: {"overall_assessment": "CONSISTENT|MINOR_ISSUES|SIGNIFICANT_ISSUES", ` +
		`"adjustments": [{"criterion_id": "...", "original_score": 0.0, "recommended_score": 0.0, "reason": "..."}], ` +
		`"final_scores": {"criterion_id": 0.0}, "total_score": 0.0, "notes": "..."}`)
	return consistencySystemPrompt, b.String()
}

const consistencySystemPrompt = "You are a senior exam moderator auditing another grader's per-criterion " +
	"scores for internal consistency before they are released. Your final scores override theirs."
