package agent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/gradeflow/gradeflow/pkg/config"
)

// ReviewRecommendation is the three-way release gate the Explainability
// agent decides, per spec.md §4.5's decision table.
type ReviewRecommendation string

const (
	ReviewAutoApproved ReviewRecommendation = "AUTO_APPROVED"
	ReviewNeedsReview  ReviewRecommendation = "NEEDS_REVIEW"
	ReviewMustReview   ReviewRecommendation = "MUST_REVIEW"
)

// ExplainabilityInput is every preceding agent's output, the full evidence
// trail the Explainability agent narrates and gates on.
type ExplainabilityInput struct {
	QuestionText           string
	InitialScores          map[string]float64 // criterion_id -> initial Scoring agent award
	FinalScores            map[string]float64 // criterion_id -> Consistency agent's final award
	OverallAssessment      string
	AnyCriterionAmbiguous  bool
	MinCriterionConfidence float64
}

// AgentAgreement computes 1 minus the mean absolute relative deviation
// between initial scoring-agent outputs and final audit scores, clamped to
// [0,1], per spec.md §4.5.
func AgentAgreement(initial, final map[string]float64) float64 {
	if len(initial) == 0 {
		return 1
	}
	var sumDeviation float64
	var n int
	for id, initialScore := range initial {
		finalScore, ok := final[id]
		if !ok {
			continue
		}
		n++
		if initialScore == 0 && finalScore == 0 {
			continue
		}
		denom := math.Max(math.Abs(initialScore), math.Abs(finalScore))
		if denom == 0 {
			continue
		}
		sumDeviation += math.Abs(finalScore-initialScore) / denom
	}
	if n == 0 {
		return 1
	}
	agreement := 1 - sumDeviation/float64(n)
	if agreement < 0 {
		return 0
	}
	if agreement > 1 {
		return 1
	}
	return agreement
}

// decideReviewRecommendation implements spec.md §4.5's decision table,
// evaluated top-down: the first matching row wins.
func decideReviewRecommendation(overallAssessment string, anyAmbiguous bool, minConfidence, agreement float64) (ReviewRecommendation, []string) {
	var triggered []string
	if overallAssessment == "SIGNIFICANT_ISSUES" {
		triggered = append(triggered, "consistency_significant_issues")
	}
	if anyAmbiguous {
		triggered = append(triggered, "criterion_ambiguous")
	}
	if agreement < 0.6 {
		triggered = append(triggered, "agent_agreement_below_0.6")
	}
	if len(triggered) > 0 {
		return ReviewMustReview, triggered
	}

	if overallAssessment == "MINOR_ISSUES" {
		triggered = append(triggered, "consistency_minor_issues")
	}
	if minConfidence < 0.7 {
		triggered = append(triggered, "criterion_confidence_below_0.7")
	}
	if agreement < 0.85 {
		triggered = append(triggered, "agent_agreement_below_0.85")
	}
	if len(triggered) > 0 {
		return ReviewNeedsReview, triggered
	}

	return ReviewAutoApproved, nil
}

// ExplainabilityResultOutput is the Explainability agent's output.
type ExplainabilityResultOutput struct {
	ReasoningNarrative   string               `json:"reasoning_narrative"`
	UncertaintyAreas     []string             `json:"uncertainty_areas"`
	ReviewRecommendation ReviewRecommendation `json:"-"`
	ReviewReason         string               `json:"-"`
	AgentAgreementScore  float64              `json:"-"`
	TriggeredRules       []string             `json:"-"`
}

// Validate only checks the model-authored prose fields; the decision-table
// fields are computed deterministically by Execute, not asked of the model,
// so there is nothing ambiguous for it to get wrong.
func (o *ExplainabilityResultOutput) Validate() error {
	if strings.TrimSpace(o.ReasoningNarrative) == "" {
		return fmt.Errorf("reasoning_narrative must not be empty")
	}
	return nil
}

// SchemaHint returns the expected JSON shape, shown to the model again on repair.
func (o *ExplainabilityResultOutput) SchemaHint() string {
	return `{"reasoning_narrative": "...", "uncertainty_areas": ["..."]}`
}

// ExplainabilityAgent wraps the Runtime with this agent's prompt and schema,
// and owns the decision-table computation spec.md §4.5 requires to be
// deterministic rather than left to the model.
type ExplainabilityAgent struct {
	runtime  *Runtime
	provider *config.LLMProviderConfig
}

func NewExplainabilityAgent(runtime *Runtime, provider *config.LLMProviderConfig) *ExplainabilityAgent {
	return &ExplainabilityAgent{runtime: runtime, provider: provider}
}

func (a *ExplainabilityAgent) Execute(ctx context.Context, runID, taskID string, input ExplainabilityInput, minCriterionConfidence float64) (*ExplainabilityResultOutput, Telemetry, error) {
	out := &ExplainabilityResultOutput{}
	telemetry, err := a.runtime.Run(ctx, "explainability", runID, taskID, a.provider, explainabilityPrompt{}, input, out)
	if err != nil {
		return out, telemetry, err
	}

	agreement := AgentAgreement(input.InitialScores, input.FinalScores)
	recommendation, triggered := decideReviewRecommendation(input.OverallAssessment, input.AnyCriterionAmbiguous, minCriterionConfidence, agreement)

	out.AgentAgreementScore = agreement
	out.ReviewRecommendation = recommendation
	out.TriggeredRules = triggered
	if len(triggered) > 0 {
		out.ReviewReason = strings.Join(triggered, ", ")
	} else {
		out.ReviewReason = "no review triggers fired"
	}

	return out, telemetry, nil
}

type explainabilityPrompt struct{}

func (explainabilityPrompt) Render(input any) (string, string) {
	in := input.(ExplainabilityInput)
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nFinal audited scores:\n", in.QuestionText)
	for id, score := range in.FinalScores {
		fmt.Fprintf(&b, "- %s: %.2f\n", id, score)
	}
	b.WriteString("\nWrite a chain-of-reasoning narrative explaining how this question's final " +
		"scores were reached across rubric grounding, scoring, and the consistency audit. List " +
		"any areas where the evidence was thin or the grading judgment call could reasonably go " +
		"another way.\n\n")
	b.WriteString(`Respond with JSON: {"reasoning_narrative": "...", "uncertainty_areas": ["..."]}`)
	return explainabilitySystemPrompt, b.String()
}

const explainabilitySystemPrompt = "You narrate, in plain language, why an exam question received " +
	"the scores it did. You do not change any score or decide whether a human should review it — " +
	"that decision is made deterministically outside of you."
