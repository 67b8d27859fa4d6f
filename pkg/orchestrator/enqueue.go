package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/ent/uploadedscript"
)

// EnqueueIngest creates the default-queue ingest task that starts the
// pipeline for a newly submitted upload. This is the one entrypoint
// pkg/coreapi calls directly rather than through the Dispatcher, since
// there is no prior task to fan out from.
func EnqueueIngest(ctx context.Context, client *ent.Client, uploadID string) error {
	return enqueue(ctx, client, "default", "ingest", "ingest-"+uploadID, "ingest:"+uploadID, ingestPayload{UploadID: uploadID})
}

// EnqueueResegment resets an upload back to ocr_complete and re-runs
// segmentation, per pkg/coreapi's re_segment control operation. A fresh
// dedupe suffix lets this run even though the original "segment" task for
// this upload already completed.
func EnqueueResegment(ctx context.Context, client *ent.Client, uploadID string) error {
	if _, err := client.UploadedScript.UpdateOneID(uploadID).
		SetStatus(uploadedscript.StatusOcrComplete).
		Save(ctx); err != nil {
		return fmt.Errorf("reset upload %s for re-segmentation: %w", uploadID, err)
	}
	resegmentID := uuid.NewString()
	return enqueue(ctx, client, "ocr", "segment", resegmentID, "segment:"+uploadID+":"+resegmentID, ocrPayload{UploadID: uploadID})
}

// EnqueueReevaluate mints a fresh run_id and re-runs the evaluation
// pipeline for one script answer, per pkg/coreapi's re_evaluate control
// operation. The prior run's EvaluationResult row is left untouched;
// nothing is mutated in place.
func EnqueueReevaluate(ctx context.Context, client *ent.Client, scriptAnswerID, questionID string) (string, error) {
	runID := uuid.NewString()
	payload := evaluateQuestionPayload{ScriptAnswerID: scriptAnswerID, QuestionID: questionID, RunID: runID}
	taskID := fmt.Sprintf("evaluate-question-%s-%s", scriptAnswerID, runID)
	dedupe := fmt.Sprintf("evaluate_question:%s:%s", scriptAnswerID, runID)
	if err := enqueue(ctx, client, "evaluation", "evaluate_question", taskID, dedupe, payload); err != nil {
		return "", err
	}
	return runID, nil
}

// enqueue creates a new pending TaskRecord, keyed by dedupeKey so a retried
// enqueue (orphan recovery, duplicate fan-in arrival) is a no-op rather than
// a second task. taskID is used only as the row's primary key.
func enqueue(ctx context.Context, client *ent.Client, queueName, taskName, taskID, dedupeKey string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for task %s: %w", taskName, err)
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return fmt.Errorf("payload for task %s must be a JSON object: %w", taskName, err)
	}

	_, err = client.TaskRecord.Create().
		SetID(taskID).
		SetQueue(queueName).
		SetTaskName(taskName).
		SetPayload(asMap).
		SetDedupeKey(dedupeKey).
		SetStatus(taskrecord.StatusPending).
		SetAvailableAt(time.Now()).
		Save(ctx)
	if err != nil && ent.IsConstraintError(err) {
		return nil // a task with this dedupe_key was already enqueued
	}
	return err
}

// decodePayload round-trips a TaskRecord's JSON-object payload into a typed
// struct; the JSON column type loses Go-level typing, so every handler
// re-validates its own payload shape on read.
func decodePayload(payload map[string]interface{}, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("re-marshal task payload: %w", err)
	}
	return json.Unmarshal(raw, out)
}
