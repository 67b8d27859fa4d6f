package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/ocrpageresult"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
	"github.com/gradeflow/gradeflow/ent/uploadedscript"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/ocr"
	"github.com/gradeflow/gradeflow/pkg/queue"
)

// handleOCRPage transcribes one rasterized page and persists its
// OCRPageResult, then arrives at the upload's ocr_aggregate fan-in gate.
// Idempotent: a replay that finds the page's OCRPageResult already
// persisted skips TranscribePage, and the create below treats a conflict
// on the (upload_id, page_number) unique index as success.
func (d *Dispatcher) handleOCRPage(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	var p ocrPagePayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return failed("ocr_page", coreerrors.KindValidation, err)
	}

	existing, err := d.deps.Client.OCRPageResult.Query().
		Where(ocrpageresult.UploadID(p.UploadID), ocrpageresult.PageNumber(p.PageNumber)).
		Only(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return failed("ocr_page", coreerrors.KindInvariantViolation, err)
	}
	if existing == nil {
		upload, err := d.deps.Client.UploadedScript.Get(ctx, p.UploadID)
		if err != nil {
			return failed("ocr_page", coreerrors.KindInvariantViolation, err)
		}
		raw, err := d.deps.Storage.Get(ctx, upload.ObjectKey)
		if err != nil {
			return failed("ocr_page", coreerrors.KindInvariantViolation, err)
		}
		pages, err := d.deps.OCR.Rasterize(ctx, raw)
		if err != nil {
			return failed("ocr_page", coreerrors.KindValidation, err)
		}
		var target *ocr.PageImage
		for i := range pages {
			if pages[i].PageNumber == p.PageNumber {
				target = &pages[i]
				break
			}
		}
		if target == nil {
			return failed("ocr_page", coreerrors.KindInvariantViolation, fmt.Errorf("page %d not found after rasterization", p.PageNumber))
		}

		result := d.deps.OCR.TranscribePage(ctx, task.ID, *target)

		_, err = d.deps.Client.OCRPageResult.Create().
			SetID(fmt.Sprintf("ocr-page-result-%s-%d", p.UploadID, p.PageNumber)).
			SetUploadID(p.UploadID).
			SetPageNumber(p.PageNumber).
			SetExtractedText(result.ExtractedText).
			SetQualityFlag(qualityFlagToEnt(result.QualityFlags)).
			Save(ctx)
		if err != nil && !ent.IsConstraintError(err) {
			return failed("ocr_page", coreerrors.KindInvariantViolation, err)
		}
	}

	expected := 0
	upload, err := d.deps.Client.UploadedScript.Get(ctx, p.UploadID)
	if err != nil {
		return failed("ocr_page", coreerrors.KindInvariantViolation, err)
	}
	if upload.PageCount != nil {
		expected = *upload.PageCount
	}

	fires, err := arriveAtGate(ctx, d.deps.Client, "uploaded_script", p.UploadID, "ocr_aggregate", expected)
	if err != nil {
		return failed("ocr_page", coreerrors.KindInvariantViolation, err)
	}
	if fires {
		if err := enqueue(ctx, d.deps.Client, "ocr", "ocr_aggregate", uuid.NewString(), "ocr_aggregate:"+p.UploadID, ocrPayload{UploadID: p.UploadID}); err != nil {
			return failed("ocr_page", coreerrors.KindInvariantViolation, err)
		}
	}
	return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
}

func qualityFlagToEnt(flags []ocr.QualityFlag) ocrpageresult.QualityFlag {
	for _, f := range flags {
		if f == ocr.QualityUnreadable {
			return ocrpageresult.QualityFlagUnreadable
		}
	}
	for _, f := range flags {
		if f == ocr.QualityLowContrast || f == ocr.QualityBlurry || f == ocr.QualityPartialScan {
			return ocrpageresult.QualityFlagPartial
		}
	}
	return ocrpageresult.QualityFlagClean
}

// handleOCRAggregate waits (by construction — it only runs once the fan-in
// gate has fired) for all pages and transitions the upload to ocr_complete,
// then enqueues segment.
func (d *Dispatcher) handleOCRAggregate(ctx context.Context, task *ent.TaskRecord) *queue.ExecutionResult {
	var p ocrPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return failed("ocr_aggregate", coreerrors.KindValidation, err)
	}

	n, err := d.deps.Client.UploadedScript.Update().
		Where(uploadedscript.ID(p.UploadID), uploadedscript.StatusEQ(uploadedscript.StatusOcrInProgress)).
		SetStatus(uploadedscript.StatusOcrComplete).
		Save(ctx)
	if err != nil {
		return failed("ocr_aggregate", coreerrors.KindInvariantViolation, err)
	}
	if n == 0 {
		return &queue.ExecutionResult{Status: taskrecord.StatusCompleted} // replay
	}

	if err := enqueue(ctx, d.deps.Client, "ocr", "segment", uuid.NewString(), "segment:"+p.UploadID, ocrPayload{UploadID: p.UploadID}); err != nil {
		return failed("ocr_aggregate", coreerrors.KindInvariantViolation, err)
	}
	return &queue.ExecutionResult{Status: taskrecord.StatusCompleted}
}
