package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/ent/uploadedscript"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/queue"
)

type ingestPayload struct {
	UploadID string `json:"upload_id"`
}

// handleIngest validates the upload is claimable and transitions it to
// ocr_in_progress, then enqueues ocr. Idempotent: a replay that finds the
// upload already past "uploaded" returns success without re-enqueuing.
func (d *Dispatcher) handleIngest(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	var p ingestPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return failed("ingest", coreerrors.KindValidation, err)
	}

	n, err := d.deps.Client.UploadedScript.Update().
		Where(uploadedscript.ID(p.UploadID), uploadedscript.StatusEQ(uploadedscript.StatusUploaded)).
		SetStatus(uploadedscript.StatusOcrInProgress).
		Save(ctx)
	if err != nil {
		return failed("ingest", coreerrors.KindInvariantViolation, err)
	}
	if n == 0 {
		// already past "uploaded" — replay, not an error
		return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
	}

	if err := enqueue(ctx, d.deps.Client, "ocr", "ocr", uuid.NewString(), "ocr:"+p.UploadID, ingestPayload{UploadID: p.UploadID}); err != nil {
		return failed("ingest", coreerrors.KindInvariantViolation, err)
	}
	return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
}

type ocrPayload struct {
	UploadID string `json:"upload_id"`
}

type ocrPagePayload struct {
	UploadID   string `json:"upload_id"`
	PageNumber int    `json:"page_number"`
}

// handleOCR rasterises the upload's stored bytes, fans out one ocr_page
// task per page, and creates the FanInGate that ocr_aggregate closes.
func (d *Dispatcher) handleOCR(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	var p ocrPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return failed("ocr", coreerrors.KindValidation, err)
	}

	upload, err := d.deps.Client.UploadedScript.Get(ctx, p.UploadID)
	if err != nil {
		return failed("ocr", coreerrors.KindInvariantViolation, err)
	}
	if upload.Status != uploadedscript.StatusOcrInProgress {
		return &queue.ExecutionResult{Status: taskrecord.StatusCompleted} // replay
	}

	raw, err := d.deps.Storage.Get(ctx, upload.ObjectKey)
	if err != nil {
		return failed("ocr", coreerrors.KindInvariantViolation, err)
	}

	pages, err := d.deps.OCR.Rasterize(ctx, raw)
	if err != nil {
		// rasterization failures (including page-limit-exceeded) are not
		// transport failures and are never retried; the upload is flagged
		// for a human to resubmit or adjust the limit.
		_, _ = d.deps.Client.UploadedScript.UpdateOneID(p.UploadID).
			SetStatus(uploadedscript.StatusFlagged).
			SetErrorMessage(err.Error()).
			Save(ctx)
		return failed("ocr", coreerrors.KindValidation, err)
	}

	if _, err := d.deps.Client.UploadedScript.UpdateOneID(p.UploadID).
		SetPageCount(len(pages)).Save(ctx); err != nil {
		return failed("ocr", coreerrors.KindInvariantViolation, err)
	}

	gateOwner := fmt.Sprintf("upload:%s", p.UploadID)
	if _, err := d.deps.Client.FanInGate.Create().
		SetID("uploaded_script:" + p.UploadID + ":ocr_aggregate").
		SetOwnerType("uploaded_script").
		SetOwnerID(p.UploadID).
		SetTaskName("ocr_aggregate").
		SetExpected(len(pages)).
		Save(ctx); err != nil && !ent.IsConstraintError(err) {
		return failed("ocr", coreerrors.KindInvariantViolation, fmt.Errorf("create fan-in gate for %s: %w", gateOwner, err))
	}

	for _, page := range pages {
		payload := ocrPagePayload{UploadID: p.UploadID, PageNumber: page.PageNumber}
		taskID := fmt.Sprintf("ocr-page-%s-%d", p.UploadID, page.PageNumber)
		dedupe := fmt.Sprintf("ocr_page:%s:%d", p.UploadID, page.PageNumber)
		if err := enqueue(ctx, d.deps.Client, "ocr", "ocr_page", taskID, dedupe, payload); err != nil {
			return failed("ocr", coreerrors.KindInvariantViolation, err)
		}
	}
	return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
}

func failed(taskName string, kind coreerrors.Kind, err error) *queue.ExecutionResult {
	return &queue.ExecutionResult{
		Status: taskrecord.StatusFailed,
		Error:  coreerrors.NewTaskError(kind, taskName, err, nil),
	}
}
