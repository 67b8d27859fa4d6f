package coreapi

import (
	"context"
	"fmt"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/pkg/models"
	"github.com/gradeflow/gradeflow/pkg/orchestrator"
)

// ControlService implements spec.md §6's re_segment and re_evaluate
// operations.
type ControlService struct {
	client *ent.Client
}

// NewControlService returns a ControlService backed by client.
func NewControlService(client *ent.Client) *ControlService {
	return &ControlService{client: client}
}

// ReSegment requeues segmentation for an upload whose segments were
// misaligned, per spec.md §4.7's "re-evaluation discards prior state"
// rule applied one stage earlier.
func (s *ControlService) ReSegment(ctx context.Context, req models.ResegmentRequest) (*models.ControlAck, error) {
	if req.UploadID == "" {
		return nil, fmt.Errorf("upload_id is required")
	}
	if err := orchestrator.EnqueueResegment(ctx, s.client, req.UploadID); err != nil {
		return nil, err
	}
	return &models.ControlAck{TaskID: req.UploadID}, nil
}

// ReEvaluate requeues the evaluation pipeline for one question's answer
// under a fresh run_id, per spec.md §4.6's idempotency rule: re-evaluation
// never mutates the superseded EvaluationResult row.
func (s *ControlService) ReEvaluate(ctx context.Context, req models.ReevaluateRequest) (*models.ControlAck, error) {
	if req.ScriptAnswerID == "" {
		return nil, fmt.Errorf("script_answer_id is required")
	}
	answer, err := s.client.ScriptAnswer.Get(ctx, req.ScriptAnswerID)
	if err != nil {
		return nil, fmt.Errorf("get script answer %s: %w", req.ScriptAnswerID, err)
	}
	runID, err := orchestrator.EnqueueReevaluate(ctx, s.client, answer.ID, answer.QuestionID)
	if err != nil {
		return nil, err
	}
	return &models.ControlAck{TaskID: runID}, nil
}
