package agent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/gradeflow/gradeflow/pkg/config"
)

// ScoringInput is one criterion's worth of work — the Scoring agent is
// invoked once per criterion, never once per question, so the fan-out unit
// is this struct, not the question.
type ScoringInput struct {
	QuestionText      string
	AnswerText        string
	CriterionID       string
	CriterionMaxMarks float64
	RequiredEvidence  []string
	IsAmbiguous       bool
}

// CriterionScoreOutput is the Scoring agent's output for one criterion.
type CriterionScoreOutput struct {
	CriterionID   string  `json:"criterion_id"`
	MarksAwarded  float64 `json:"marks_awarded"`
	Quote         string  `json:"quote"`
	Reason        string  `json:"reason"`
	Confidence    float64 `json:"confidence"`
	answerText    string
	maxMarks      float64
	expectedID    string
}

// DisplayQuote returns the justification quote truncated to 250 characters,
// the display bound spec'd for the evidence citation.
func (o *CriterionScoreOutput) DisplayQuote() string {
	if len(o.Quote) <= 250 {
		return o.Quote
	}
	return o.Quote[:250]
}

// Validate enforces the scoring contract: marks-awarded is a multiple of
// 0.25 within [0, max], and the justification quote (when non-empty) is a
// verbatim substring of the answer text rather than a paraphrase.
func (o *CriterionScoreOutput) Validate() error {
	if o.CriterionID != o.expectedID {
		return fmt.Errorf("response criterion_id %q does not match the requested criterion %q", o.CriterionID, o.expectedID)
	}
	if o.MarksAwarded < 0 || o.MarksAwarded > o.maxMarks {
		return fmt.Errorf("marks_awarded %.2f out of [0, %.2f]", o.MarksAwarded, o.maxMarks)
	}
	quarters := o.MarksAwarded / 0.25
	if math.Abs(quarters-math.Round(quarters)) > 1e-6 {
		return fmt.Errorf("marks_awarded %.2f is not a multiple of 0.25", o.MarksAwarded)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("confidence %.3f out of [0,1]", o.Confidence)
	}
	if o.Quote != "" && !strings.Contains(o.answerText, o.Quote) {
		return fmt.Errorf("quote is not a verbatim substring of the answer text")
	}
	return nil
}

// SchemaHint returns the expected JSON shape, shown to the model again on repair.
func (o *CriterionScoreOutput) SchemaHint() string {
	return `{"criterion_id": "...", "marks_awarded": 0.0, "quote": "...", "reason": "...", "confidence": 0.0}`
}

// ScoringAgent wraps the Runtime with the per-criterion scoring prompt.
// Per-criterion invocations are independent and are expected to be fanned
// out in parallel by pkg/orchestrator/scoringrunner.go.
type ScoringAgent struct {
	runtime  *Runtime
	provider *config.LLMProviderConfig
}

func NewScoringAgent(runtime *Runtime, provider *config.LLMProviderConfig) *ScoringAgent {
	return &ScoringAgent{runtime: runtime, provider: provider}
}

func (a *ScoringAgent) Execute(ctx context.Context, runID, taskID string, input ScoringInput) (*CriterionScoreOutput, Telemetry, error) {
	out := &CriterionScoreOutput{answerText: input.AnswerText, maxMarks: input.CriterionMaxMarks, expectedID: input.CriterionID}
	telemetry, err := a.runtime.Run(ctx, "scoring", runID, taskID, a.provider, scoringPrompt{}, input, out)
	return out, telemetry, err
}

type scoringPrompt struct{}

func (scoringPrompt) Render(input any) (string, string) {
	in := input.(ScoringInput)
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nStudent answer:\n%s\n\n", in.QuestionText, in.AnswerText)
	fmt.Fprintf(&b, "Score ONLY this criterion (criterion_id %q, max marks %.2f):\n", in.CriterionID, in.CriterionMaxMarks)
	for _, e := range in.RequiredEvidence {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	if in.IsAmbiguous {
		b.WriteString("\nNote: this criterion's wording was flagged ambiguous during rubric grounding; use your best judgment and lean on the required evidence list above.\n")
	}
	b.WriteString("\nScore evidence-based: absence of an evidence point earns it no credit, " +
		"partial evidence earns partial credit, full evidence earns full credit. " +
		"marks_awarded must be a multiple of 0.25 between 0 and the max above. quote must " +
		"be copied verbatim from the student answer above, not paraphrased or corrected.\n\n" +
		`Respond with JSON: {"criterion_id": "...", "marks_awarded": 0.0, "quote": "...", "reason": "...", "confidence": 0.0}`)
	return scoringSystemPrompt, b.String()
}

const scoringSystemPrompt = "You are an exam grader scoring one rubric criterion at a time. " +
	"You award marks strictly on the evidence present in the answer text, never on your own " +
	"knowledge of the subject."
