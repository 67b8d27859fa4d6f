package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/criterion"
	"github.com/gradeflow/gradeflow/ent/evaluationresult"
	"github.com/gradeflow/gradeflow/ent/explainabilityresult"
	"github.com/gradeflow/gradeflow/ent/scriptanswer"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/ent/uploadedscript"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/queue"
)

type evaluateScriptPayload struct {
	ScriptID string `json:"script_id"`
	RunID    string `json:"run_id"`
}

type evaluateQuestionPayload struct {
	ScriptAnswerID string `json:"script_answer_id"`
	QuestionID     string `json:"question_id"`
	RunID          string `json:"run_id"`
}

// handleEvaluateScript fans out one evaluate_question task per
// (question, answer) pair and creates the fan-in gate that, once every
// sibling completes, advances the owning upload to evaluated or flagged.
func (d *Dispatcher) handleEvaluateScript(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	var p evaluateScriptPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return failed("evaluate_script", coreerrors.KindValidation, err)
	}

	answers, err := d.deps.Client.ScriptAnswer.Query().
		Where(scriptanswer.ScriptID(p.ScriptID)).
		All(ctx)
	if err != nil {
		return failed("evaluate_script", coreerrors.KindInvariantViolation, err)
	}

	script, err := d.deps.Client.Script.Get(ctx, p.ScriptID)
	if err != nil {
		return failed("evaluate_script", coreerrors.KindInvariantViolation, err)
	}

	if _, err := d.deps.Client.UploadedScript.UpdateOneID(script.UploadID).
		SetStatus(uploadedscript.StatusEvaluating).
		Save(ctx); err != nil {
		return failed("evaluate_script", coreerrors.KindInvariantViolation, err)
	}

	gateOwnerID := p.ScriptID + ":" + p.RunID
	if _, err := d.deps.Client.FanInGate.Create().
		SetID("script:" + gateOwnerID + ":evaluate_script").
		SetOwnerType("script").
		SetOwnerID(gateOwnerID).
		SetTaskName("evaluate_script").
		SetExpected(len(answers)).
		Save(ctx); err != nil && !ent.IsConstraintError(err) {
		return failed("evaluate_script", coreerrors.KindInvariantViolation, err)
	}

	for _, a := range answers {
		payload := evaluateQuestionPayload{ScriptAnswerID: a.ID, QuestionID: a.QuestionID, RunID: p.RunID}
		taskID := fmt.Sprintf("evaluate-question-%s-%s", a.ID, p.RunID)
		dedupe := fmt.Sprintf("evaluate_question:%s:%s", a.ID, p.RunID)
		if err := enqueue(ctx, d.deps.Client, "evaluation", "evaluate_question", taskID, dedupe, payload); err != nil {
			return failed("evaluate_script", coreerrors.KindInvariantViolation, err)
		}
	}
	return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
}

// handleEvaluateQuestion runs the five-agent evaluation pipeline of
// spec.md §4.5 for one question's answer, persists the EvaluationResult
// tree, and arrives at the script's evaluate_script fan-in gate. An empty
// answer short-circuits per SPEC_FULL.md §9's Open-Question decision:
// scoring is skipped entirely and a zero-score result is synthesized.
func (d *Dispatcher) handleEvaluateQuestion(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	var p evaluateQuestionPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return failed("evaluate_question", coreerrors.KindValidation, err)
	}

	existing, err := d.deps.Client.EvaluationResult.Query().
		Where(evaluationresult.RunID(p.RunID), evaluationresult.QuestionID(p.QuestionID)).
		Only(ctx)
	if err == nil && existing.Status != evaluationresult.StatusPending && existing.Status != evaluationresult.StatusInProgress {
		return d.arriveAtEvaluateScriptGate(ctx, task.ID, p)
	}
	if err != nil && !ent.IsNotFound(err) {
		return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
	}

	answer, err := d.deps.Client.ScriptAnswer.Get(ctx, p.ScriptAnswerID)
	if err != nil {
		return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
	}
	question, err := d.deps.Client.Question.Get(ctx, p.QuestionID)
	if err != nil {
		return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
	}
	criteria, err := d.deps.Client.Criterion.Query().
		Where(criterion.QuestionID(p.QuestionID)).
		Order(ent.Asc(criterion.FieldOrderIndex)).
		All(ctx)
	if err != nil {
		return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
	}

	resultID := fmt.Sprintf("eval-%s-%s", p.ScriptAnswerID, p.RunID)
	_, err = d.deps.Client.EvaluationResult.Create().
		SetID(resultID).
		SetScriptAnswerID(p.ScriptAnswerID).
		SetQuestionID(p.QuestionID).
		SetRunID(p.RunID).
		SetStatus(evaluationresult.StatusInProgress).
		Save(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
	}

	if answer.AnswerText == "" {
		if err := d.synthesizeZeroScore(ctx, resultID); err != nil {
			return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
		}
		return d.arriveAtEvaluateScriptGate(ctx, task.ID, p)
	}

	if err := d.runEvaluationPipeline(ctx, p.RunID, task.ID, resultID, question, answer, criteria); err != nil {
		var taskErr *coreerrors.TaskError
		if errors.As(err, &taskErr) && coreerrors.IsRetryable(taskErr.Kind) {
			return &queue.ExecutionResult{Status: taskrecord.StatusFailed, Error: err}
		}
		_, _ = d.deps.Client.EvaluationResult.UpdateOneID(resultID).
			SetStatus(evaluationresult.StatusFailed).
			SetErrorMessage(err.Error()).
			Save(ctx)
		return d.arriveAtEvaluateScriptGate(ctx, task.ID, p)
	}

	return d.arriveAtEvaluateScriptGate(ctx, task.ID, p)
}

func (d *Dispatcher) arriveAtEvaluateScriptGate(ctx context.Context, taskID string, p evaluateQuestionPayload) *queue.ExecutionResult {
	answer, err := d.deps.Client.ScriptAnswer.Get(ctx, p.ScriptAnswerID)
	if err != nil {
		return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
	}

	fires, err := arriveAtGate(ctx, d.deps.Client, "script", answer.ScriptID+":"+p.RunID, "evaluate_script", 0)
	if err != nil {
		return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
	}
	if fires {
		if err := d.finishScript(ctx, answer.ScriptID); err != nil {
			return failed("evaluate_question", coreerrors.KindInvariantViolation, err)
		}
	}
	return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
}

// finishScript transitions the owning upload to evaluated or flagged
// depending on whether any question's EvaluationResult failed, per
// spec.md §4.6.
func (d *Dispatcher) finishScript(ctx context.Context, scriptID string) error {
	script, err := d.deps.Client.Script.Get(ctx, scriptID)
	if err != nil {
		return err
	}
	answers, err := d.deps.Client.ScriptAnswer.Query().Where(scriptanswer.ScriptID(scriptID)).All(ctx)
	if err != nil {
		return err
	}

	anyFailed := false
	for _, a := range answers {
		results, err := d.deps.Client.EvaluationResult.Query().
			Where(evaluationresult.ScriptAnswerID(a.ID)).
			All(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Status == evaluationresult.StatusFailed {
				anyFailed = true
			}
		}
	}

	status := uploadedscript.StatusEvaluated
	if anyFailed {
		status = uploadedscript.StatusFlagged
	}
	return d.deps.Client.UploadedScript.UpdateOneID(script.UploadID).SetStatus(status).Exec(ctx)
}

// synthesizeZeroScore writes a COMPLETE EvaluationResult with all criteria
// at zero and a NEEDS_REVIEW recommendation, without calling any agent —
// the deterministic short-circuit of SPEC_FULL.md §9.
func (d *Dispatcher) synthesizeZeroScore(ctx context.Context, resultID string) error {
	percentage := 0.0
	_, err := d.deps.Client.EvaluationResult.UpdateOneID(resultID).
		SetStatus(evaluationresult.StatusComplete).
		SetTotalScore(0).
		SetPercentage(percentage).
		SetCompletedAt(time.Now()).
		Save(ctx)
	if err != nil {
		return err
	}
	_, err = d.deps.Client.ExplainabilityResult.Create().
		SetID(resultID + "-explainability").
		SetEvaluationResultID(resultID).
		SetReviewRecommendation(explainabilityresult.ReviewRecommendationNeedsReview).
		SetTriggeredRules([]string{"empty_answer"}).
		SetAgentAgreementScore(1).
		SetUncertaintyAreas(nil).
		SetExplanation("No answer text was found for this question; a zero score was assigned without invoking the evaluation pipeline.").
		Save(ctx)
	return err
}

func roundToOneDecimal(v float64) float64 { return math.Round(v*10) / 10 }
