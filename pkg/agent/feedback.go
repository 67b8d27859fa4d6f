package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradeflow/gradeflow/pkg/config"
)

// FeedbackCriterionInput is one audited criterion the Feedback agent can
// draw on, never the un-audited initial score.
type FeedbackCriterionInput struct {
	CriterionID string
	Description string
	MaxMarks    float64
	FinalScore  float64
}

// FeedbackInput is the full per-question package for generating
// student-facing prose.
type FeedbackInput struct {
	QuestionText string
	AnswerText   string
	Criteria     []FeedbackCriterionInput
}

// ToneBucket returns the feedback tone bucket for an achieved fraction of
// marks, per spec.md §9's fixed thresholds: high >= 0.75, medium >= 0.4,
// otherwise low.
func ToneBucket(fraction float64) string {
	switch {
	case fraction >= 0.75:
		return "high"
	case fraction >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

// FeedbackImprovement ties one improvement suggestion to a specific
// criterion so the student can see exactly which part of the rubric it
// addresses.
type FeedbackImprovement struct {
	CriterionID string `json:"criterion_id"`
	Gap         string `json:"gap"`
	Suggestion  string `json:"suggestion"`
}

// StudentFeedbackOutput is the Feedback agent's output.
type StudentFeedbackOutput struct {
	Summary              string                `json:"summary"`
	Strengths            []string              `json:"strengths"`
	Improvements         []FeedbackImprovement `json:"improvements"`
	StudyRecommendations []string              `json:"study_recommendations"`
	Encouragement        string                `json:"encouragement"`
	declaredCriterionIDs map[string]bool
}

// Validate enforces that every improvement cites a criterion that actually
// exists on this question's rubric, and that the summary is non-empty.
func (o *StudentFeedbackOutput) Validate() error {
	if strings.TrimSpace(o.Summary) == "" {
		return fmt.Errorf("summary must not be empty")
	}
	for _, imp := range o.Improvements {
		if !o.declaredCriterionIDs[imp.CriterionID] {
			return fmt.Errorf("improvement cites unknown criterion %q", imp.CriterionID)
		}
	}
	return nil
}

// SchemaHint returns the expected JSON shape, shown to the model again on repair.
func (o *StudentFeedbackOutput) SchemaHint() string {
	return `{"summary": "...", "strengths": ["..."], ` +
		`"improvements": [{"criterion_id": "...", "gap": "...", "suggestion": "..."}], ` +
		`"study_recommendations": ["..."], "encouragement": "..."}`
}

// FeedbackAgent wraps the Runtime with this agent's prompt and schema.
type FeedbackAgent struct {
	runtime  *Runtime
	provider *config.LLMProviderConfig
}

func NewFeedbackAgent(runtime *Runtime, provider *config.LLMProviderConfig) *FeedbackAgent {
	return &FeedbackAgent{runtime: runtime, provider: provider}
}

func (a *FeedbackAgent) Execute(ctx context.Context, runID, taskID string, input FeedbackInput) (*StudentFeedbackOutput, Telemetry, error) {
	declared := make(map[string]bool, len(input.Criteria))
	for _, c := range input.Criteria {
		declared[c.CriterionID] = true
	}
	out := &StudentFeedbackOutput{declaredCriterionIDs: declared}
	telemetry, err := a.runtime.Run(ctx, "feedback", runID, taskID, a.provider, feedbackPrompt{}, input, out)
	return out, telemetry, err
}

type feedbackPrompt struct{}

func (feedbackPrompt) Render(input any) (string, string) {
	in := input.(FeedbackInput)

	var awarded, possible float64
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nStudent answer:\n%s\n\nAudited scores:\n", in.QuestionText, in.AnswerText)
	for _, c := range in.Criteria {
		fmt.Fprintf(&b, "- %s (max %.2f, awarded %.2f): %s\n", c.CriterionID, c.MaxMarks, c.FinalScore, c.Description)
		awarded += c.FinalScore
		possible += c.MaxMarks
	}
	fraction := 0.0
	if possible > 0 {
		fraction = awarded / possible
	}
	fmt.Fprintf(&b, "\nWrite feedback in a %s tone (achieved %.0f%% of available marks). Each "+
		"strength must cite specific evidence from the answer above. Each improvement must name "+
		"one of the criterion-ids above and describe the gap plus a concrete suggestion to close "+
		"it.\n\n", ToneBucket(fraction), fraction*100)
	b.WriteString(`Respond with JSON: {"summary": "...", "strengths": ["..."], ` +
		`"improvements": [{"criterion_id": "...", "gap": "...", "suggestion": "..."}], ` +
		`"study_recommendations": ["..."], "encouragement": "..."}`)
	return feedbackSystemPrompt, b.String()
}

const feedbackSystemPrompt = "You are writing feedback directly to the student. Be specific, " +
	"evidence-based, and encouraging; never invent evidence that is not in the answer text."
