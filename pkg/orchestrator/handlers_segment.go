package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/ocrpageresult"
	"github.com/gradeflow/gradeflow/ent/question"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/ent/uploadedscript"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/queue"
	"github.com/gradeflow/gradeflow/pkg/segmenter"
)

// handleSegment loads the upload's OCR'd pages and its exam's declared
// questions, runs the Segmenter, persists a Script with its ScriptAnswer
// rows, transitions the upload to segmented, and enqueues evaluate_script.
func (d *Dispatcher) handleSegment(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	var p ocrPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return failed("segment", coreerrors.KindValidation, err)
	}

	upload, err := d.deps.Client.UploadedScript.Get(ctx, p.UploadID)
	if err != nil {
		return failed("segment", coreerrors.KindInvariantViolation, err)
	}
	if upload.Status != uploadedscript.StatusOcrComplete {
		return &queue.ExecutionResult{Status: taskrecord.StatusCompleted} // replay
	}

	pageRows, err := d.deps.Client.OCRPageResult.Query().
		Where(ocrpageresult.UploadID(p.UploadID)).
		Order(ent.Asc(ocrpageresult.FieldPageNumber)).
		All(ctx)
	if err != nil {
		return failed("segment", coreerrors.KindInvariantViolation, err)
	}
	pages := make([]segmenter.OCRPage, len(pageRows))
	for i, row := range pageRows {
		pages[i] = segmenter.OCRPage{PageNumber: row.PageNumber, Text: row.ExtractedText}
	}

	questionRows, err := d.deps.Client.Question.Query().
		Where(question.ExamID(upload.ExamID)).
		Order(ent.Asc(question.FieldOrderIndex)).
		All(ctx)
	if err != nil {
		return failed("segment", coreerrors.KindInvariantViolation, err)
	}
	questions := make([]segmenter.QuestionRef, len(questionRows))
	for i, q := range questionRows {
		questions[i] = segmenter.QuestionRef{QuestionID: q.ID, MaxMarks: q.MaxMarks, PromptText: q.PromptText}
	}

	draft, err := d.deps.Segmenter.Segment(ctx, task.ID, pages, questions)
	if err != nil {
		_, _ = d.deps.Client.UploadedScript.UpdateOneID(p.UploadID).
			SetStatus(uploadedscript.StatusFlagged).
			SetErrorMessage(err.Error()).
			Save(ctx)
		return failed("segment", coreerrors.KindSegmentationFailed, err)
	}

	scriptID := "script-" + p.UploadID
	if _, err := d.deps.Client.Script.Create().
		SetID(scriptID).
		SetUploadID(p.UploadID).
		Save(ctx); err != nil && !ent.IsConstraintError(err) {
		return failed("segment", coreerrors.KindInvariantViolation, err)
	}

	for _, seg := range draft.Segments {
		_, err := d.deps.Client.ScriptAnswer.Create().
			SetID(fmt.Sprintf("script-answer-%s-%s", scriptID, seg.QuestionID)).
			SetScriptID(scriptID).
			SetQuestionID(seg.QuestionID).
			SetAnswerText(seg.AnswerText).
			Save(ctx)
		if err != nil && !ent.IsConstraintError(err) {
			return failed("segment", coreerrors.KindInvariantViolation, err)
		}
	}

	n, err := d.deps.Client.UploadedScript.Update().
		Where(uploadedscript.ID(p.UploadID), uploadedscript.StatusEQ(uploadedscript.StatusOcrComplete)).
		SetStatus(uploadedscript.StatusSegmented).
		Save(ctx)
	if err != nil {
		return failed("segment", coreerrors.KindInvariantViolation, err)
	}
	if n == 0 {
		return &queue.ExecutionResult{Status: taskrecord.StatusCompleted} // replay
	}

	payload := evaluateScriptPayload{ScriptID: scriptID, RunID: uuid.NewString()}
	if err := enqueue(ctx, d.deps.Client, "evaluation", "evaluate_script", uuid.NewString(), "evaluate_script:"+scriptID+":"+payload.RunID, payload); err != nil {
		return failed("segment", coreerrors.KindInvariantViolation, err)
	}
	return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
}
