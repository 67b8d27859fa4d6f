package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/evaluationresult"
	"github.com/gradeflow/gradeflow/ent/explainabilityresult"
	"github.com/gradeflow/gradeflow/ent/schema"
	"github.com/gradeflow/gradeflow/pkg/agent"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
)

// classifyAgentErr maps a Runtime.Run failure to the taxonomy of spec.md
// §7: a gateway-surfaced transport exhaustion is retryable (LLM_UNAVAILABLE),
// anything else (schema/repair exhaustion) is fatal for the question
// (LLM_MALFORMED).
func classifyAgentErr(err error) coreerrors.Kind {
	if errors.Is(err, coreerrors.ErrLLMUnavailable) {
		return coreerrors.KindLLMUnavailable
	}
	return coreerrors.KindLLMMalformed
}

// checkBudget returns a fatal TaskError once the run's cumulative token
// spend (spec.md §4.1, §6) has been exhausted. Nil Budget disables
// enforcement entirely.
func (d *Dispatcher) checkBudget(ctx context.Context, runID string) error {
	if d.deps.Budget == nil || d.deps.TokenBudgetPerRun <= 0 {
		return nil
	}
	remaining, err := d.deps.Budget.Remaining(ctx, runID, d.deps.TokenBudgetPerRun)
	if err != nil {
		d.logger.Warn("token budget check failed, allowing call through", "run_id", runID, "error", err)
		return nil
	}
	if remaining <= 0 {
		return coreerrors.NewTaskError(coreerrors.KindQuestionFailed, "evaluate_question",
			fmt.Errorf("token budget of %d exhausted for run %s", d.deps.TokenBudgetPerRun, runID),
			map[string]string{"run_id": runID})
	}
	return nil
}

// spend records one agent call's token usage against the run's cumulative
// budget counter. Failures are logged, not propagated — a Redis hiccup
// should not fail an otherwise-successful evaluation.
func (d *Dispatcher) spend(ctx context.Context, runID string, usage llmgateway.TokenUsage) {
	if d.deps.Budget == nil {
		return
	}
	if _, err := d.deps.Budget.Spend(ctx, runID, usage.TotalTokens); err != nil {
		d.logger.Warn("token budget spend failed", "run_id", runID, "error", err)
	}
}

// runEvaluationPipeline runs the five evaluation agents in the strict
// sequence spec.md §5 requires (grounding, then every criterion's scoring
// completes, then consistency, then feedback, then explainability) and
// persists each agent's output as it completes.
func (d *Dispatcher) runEvaluationPipeline(ctx context.Context, runID, taskID, resultID string, question *ent.Question, answer *ent.ScriptAnswer, criteria []*ent.Criterion) error {
	groundingInput := agent.RubricGroundingInput{
		QuestionID: question.ID,
		PromptText: question.PromptText,
		MaxMarks:   question.MaxMarks,
	}
	for _, c := range criteria {
		groundingInput.Criteria = append(groundingInput.Criteria, agent.RubricGroundingCriterionInput{
			CriterionID: c.ID, Description: c.Description, MaxMarks: c.MaxMarks,
		})
	}

	if err := d.checkBudget(ctx, runID); err != nil {
		return err
	}
	grounded, groundingTelemetry, err := d.deps.RubricGrounding.Execute(ctx, runID, taskID+":rubric_grounding", groundingInput)
	if err != nil {
		return coreerrors.NewTaskError(classifyAgentErr(err), "evaluate_question", err, map[string]string{"question_id": question.ID})
	}
	d.spend(ctx, runID, groundingTelemetry.Usage)
	if err := d.persistGroundedRubric(ctx, resultID, grounded); err != nil {
		return err
	}

	groundedByID := make(map[string]agent.GroundedCriterion, len(grounded.Criteria))
	for _, gc := range grounded.Criteria {
		groundedByID[gc.CriterionID] = gc
	}

	scoringInputs := make([]agent.ScoringInput, len(criteria))
	for i, c := range criteria {
		gc := groundedByID[c.ID]
		scoringInputs[i] = agent.ScoringInput{
			QuestionText:      question.PromptText,
			AnswerText:        answer.AnswerText,
			CriterionID:       c.ID,
			CriterionMaxMarks: c.MaxMarks,
			RequiredEvidence:  gc.RequiredEvidence,
			IsAmbiguous:       gc.IsAmbiguous,
		}
	}

	if err := d.checkBudget(ctx, runID); err != nil {
		return err
	}
	runner := NewScoringRunner(d.deps.Scoring, d.deps.ScoringConcurrency)
	scoreResults, err := runner.RunAll(ctx, runID, taskID+":scoring", scoringInputs)
	if err != nil {
		return coreerrors.NewTaskError(classifyAgentErr(err), "evaluate_question", err, map[string]string{"question_id": question.ID})
	}

	minConfidence := 1.0
	initialScores := make(map[string]float64, len(scoreResults))
	anyAmbiguous := false
	consistencyInput := agent.ConsistencyInput{QuestionText: question.PromptText, AnswerText: answer.AnswerText}
	for _, res := range scoreResults {
		if res.Err != nil {
			return coreerrors.NewTaskError(classifyAgentErr(res.Err), "evaluate_question", res.Err, map[string]string{"criterion_id": res.CriterionID})
		}
		d.spend(ctx, runID, res.Telemetry.Usage)
		if err := d.persistCriterionScore(ctx, resultID, res.Score); err != nil {
			return err
		}
		initialScores[res.CriterionID] = res.Score.MarksAwarded
		if res.Score.Confidence < minConfidence {
			minConfidence = res.Score.Confidence
		}
		gc := groundedByID[res.CriterionID]
		if gc.IsAmbiguous {
			anyAmbiguous = true
		}
		consistencyInput.Scores = append(consistencyInput.Scores, agent.ConsistencyScoreInput{
			CriterionID: res.Score.CriterionID, Description: descriptionFor(criteria, res.Score.CriterionID),
			MaxMarks: maxMarksFor(criteria, res.Score.CriterionID), MarksAwarded: res.Score.MarksAwarded,
			Quote: res.Score.Quote, Reason: res.Score.Reason,
		})
	}

	if err := d.checkBudget(ctx, runID); err != nil {
		return err
	}
	audit, consistencyTelemetry, err := d.deps.Consistency.Execute(ctx, runID, taskID+":consistency", consistencyInput)
	if err != nil {
		return coreerrors.NewTaskError(classifyAgentErr(err), "evaluate_question", err, map[string]string{"question_id": question.ID})
	}
	d.spend(ctx, runID, consistencyTelemetry.Usage)
	if err := d.persistConsistencyAudit(ctx, resultID, audit); err != nil {
		return err
	}

	feedbackInput := agent.FeedbackInput{QuestionText: question.PromptText, AnswerText: answer.AnswerText}
	for _, c := range criteria {
		feedbackInput.Criteria = append(feedbackInput.Criteria, agent.FeedbackCriterionInput{
			CriterionID: c.ID, Description: c.Description, MaxMarks: c.MaxMarks, FinalScore: audit.FinalScores[c.ID],
		})
	}
	if err := d.checkBudget(ctx, runID); err != nil {
		return err
	}
	feedback, feedbackTelemetry, err := d.deps.Feedback.Execute(ctx, runID, taskID+":feedback", feedbackInput)
	if err != nil {
		return coreerrors.NewTaskError(classifyAgentErr(err), "evaluate_question", err, map[string]string{"question_id": question.ID})
	}
	d.spend(ctx, runID, feedbackTelemetry.Usage)
	if err := d.persistFeedback(ctx, resultID, feedback, audit.TotalScore, question.MaxMarks); err != nil {
		return err
	}

	explainabilityInput := agent.ExplainabilityInput{
		QuestionText:           question.PromptText,
		InitialScores:          initialScores,
		FinalScores:            audit.FinalScores,
		OverallAssessment:      audit.OverallAssessment,
		AnyCriterionAmbiguous:  anyAmbiguous,
		MinCriterionConfidence: minConfidence,
	}
	if err := d.checkBudget(ctx, runID); err != nil {
		return err
	}
	explainability, explainabilityTelemetry, err := d.deps.Explainability.Execute(ctx, runID, taskID+":explainability", explainabilityInput, minConfidence)
	if err != nil {
		return coreerrors.NewTaskError(classifyAgentErr(err), "evaluate_question", err, map[string]string{"question_id": question.ID})
	}
	d.spend(ctx, runID, explainabilityTelemetry.Usage)
	if err := d.persistExplainability(ctx, resultID, explainability); err != nil {
		return err
	}

	percentage := 0.0
	if question.MaxMarks > 0 {
		percentage = roundToOneDecimal(100 * audit.TotalScore / question.MaxMarks)
	}
	return d.deps.Client.EvaluationResult.UpdateOneID(resultID).
		SetStatus(evaluationresult.StatusComplete).
		SetTotalScore(audit.TotalScore).
		SetPercentage(percentage).
		SetCompletedAt(time.Now()).
		Exec(ctx)
}

func descriptionFor(criteria []*ent.Criterion, id string) string {
	for _, c := range criteria {
		if c.ID == id {
			return c.Description
		}
	}
	return ""
}

func maxMarksFor(criteria []*ent.Criterion, id string) float64 {
	for _, c := range criteria {
		if c.ID == id {
			return c.MaxMarks
		}
	}
	return 0
}

func (d *Dispatcher) persistGroundedRubric(ctx context.Context, resultID string, out *agent.GroundedRubricOutput) error {
	_, err := d.deps.Client.GroundedRubric.Create().
		SetID(resultID + "-grounded-rubric").
		SetEvaluationResultID(resultID).
		SetGroundedCriteria(toGroundedCriterionDTOs(out.Criteria)).
		Save(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return fmt.Errorf("persist grounded rubric for %s: %w", resultID, err)
	}
	return nil
}

func toGroundedCriterionDTOs(criteria []agent.GroundedCriterion) []schema.GroundedCriterionDTO {
	out := make([]schema.GroundedCriterionDTO, len(criteria))
	for i, c := range criteria {
		notes := ""
		if c.IsAmbiguous {
			notes = "flagged ambiguous during rubric grounding"
		}
		out[i].CriterionID = c.CriterionID
		out[i].Notes = notes
		out[i].Quotes = c.RequiredEvidence
	}
	return out
}

func (d *Dispatcher) persistCriterionScore(ctx context.Context, resultID string, score *agent.CriterionScoreOutput) error {
	quotes := []string{}
	if score.Quote != "" {
		quotes = append(quotes, score.Quote)
	}
	_, err := d.deps.Client.CriterionScore.Create().
		SetID(resultID + "-score-" + score.CriterionID).
		SetEvaluationResultID(resultID).
		SetCriterionID(score.CriterionID).
		SetMarksAwarded(score.MarksAwarded).
		SetJustification(score.Reason).
		SetQuotes(quotes).
		Save(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return fmt.Errorf("persist criterion score %s/%s: %w", resultID, score.CriterionID, err)
	}
	return nil
}

func (d *Dispatcher) persistConsistencyAudit(ctx context.Context, resultID string, audit *agent.ConsistencyAuditOutput) error {
	adjusted := map[string]float64{}
	for _, a := range audit.Adjustments {
		adjusted[a.CriterionID] = a.RecommendedScore
	}
	_, err := d.deps.Client.ConsistencyAudit.Create().
		SetID(resultID + "-consistency").
		SetEvaluationResultID(resultID).
		SetAdjustmentsMade(len(audit.Adjustments) > 0).
		SetAdjustedScores(adjusted).
		SetRationale(audit.Notes).
		Save(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return fmt.Errorf("persist consistency audit for %s: %w", resultID, err)
	}
	return nil
}

func (d *Dispatcher) persistFeedback(ctx context.Context, resultID string, feedback *agent.StudentFeedbackOutput, totalScore, maxMarks float64) error {
	fraction := 0.0
	if maxMarks > 0 {
		fraction = totalScore / maxMarks
	}
	improvements := make([]string, len(feedback.Improvements))
	for i, imp := range feedback.Improvements {
		improvements[i] = fmt.Sprintf("%s: %s -> %s", imp.CriterionID, imp.Gap, imp.Suggestion)
	}
	_, err := d.deps.Client.StudentFeedback.Create().
		SetID(resultID + "-feedback").
		SetEvaluationResultID(resultID).
		SetSummary(feedback.Summary).
		SetStrengths(feedback.Strengths).
		SetImprovements(improvements).
		SetToneBucket(agent.ToneBucket(fraction)).
		Save(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return fmt.Errorf("persist student feedback for %s: %w", resultID, err)
	}
	return nil
}

func (d *Dispatcher) persistExplainability(ctx context.Context, resultID string, out *agent.ExplainabilityResultOutput) error {
	_, err := d.deps.Client.ExplainabilityResult.Create().
		SetID(resultID + "-explainability").
		SetEvaluationResultID(resultID).
		SetReviewRecommendation(toEntReviewRecommendation(out.ReviewRecommendation)).
		SetTriggeredRules(out.TriggeredRules).
		SetAgentAgreementScore(out.AgentAgreementScore).
		SetUncertaintyAreas(out.UncertaintyAreas).
		SetExplanation(out.ReasoningNarrative).
		Save(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return fmt.Errorf("persist explainability result for %s: %w", resultID, err)
	}
	return nil
}

func toEntReviewRecommendation(r agent.ReviewRecommendation) explainabilityresult.ReviewRecommendation {
	switch r {
	case agent.ReviewMustReview:
		return explainabilityresult.ReviewRecommendationMustReview
	case agent.ReviewNeedsReview:
		return explainabilityresult.ReviewRecommendationNeedsReview
	default:
		return explainabilityresult.ReviewRecommendationAutoApproved
	}
}
