package coreapi

import (
	"context"
	"fmt"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/evaluationresult"
	"github.com/gradeflow/gradeflow/ent/explainabilityresult"
	"github.com/gradeflow/gradeflow/pkg/models"
)

// StatusService implements spec.md §6's get_upload and get_result
// operations: read-only projections over the pipeline's persisted state.
type StatusService struct {
	client *ent.Client
}

// NewStatusService returns a StatusService backed by client.
func NewStatusService(client *ent.Client) *StatusService {
	return &StatusService{client: client}
}

// GetUpload returns a poll-friendly projection of an UploadedScript.
func (s *StatusService) GetUpload(ctx context.Context, uploadID string) (*models.UploadStatus, error) {
	upload, err := s.client.UploadedScript.Get(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("get upload %s: %w", uploadID, err)
	}
	return &models.UploadStatus{
		UploadID:     upload.ID,
		ExamID:       upload.ExamID,
		StudentRef:   upload.StudentRef,
		Status:       upload.Status.String(),
		PageCount:    upload.PageCount,
		ErrorMessage: upload.ErrorMessage,
		CreatedAt:    upload.CreatedAt,
	}, nil
}

// GetResult returns the most recent EvaluationResult for one question's
// answer, along with its explainability review recommendation.
func (s *StatusService) GetResult(ctx context.Context, scriptAnswerID, questionID string) (*models.EvaluationSummary, error) {
	result, err := s.client.EvaluationResult.Query().
		Where(evaluationresult.ScriptAnswerID(scriptAnswerID), evaluationresult.QuestionID(questionID)).
		Order(ent.Desc(evaluationresult.FieldCreatedAt)).
		First(ctx)
	if err != nil {
		return nil, fmt.Errorf("get result for answer %s question %s: %w", scriptAnswerID, questionID, err)
	}

	summary := &models.EvaluationSummary{
		QuestionID:       result.QuestionID,
		RunID:            result.RunID,
		Status:           result.Status.String(),
		TotalScore:       result.TotalScore,
		Percentage:       result.Percentage,
		ReviewerOverride: result.ReviewerOverride,
	}

	explainability, err := s.client.ExplainabilityResult.Query().
		Where(explainabilityresult.EvaluationResultID(result.ID)).
		Only(ctx)
	if err == nil {
		summary.ReviewRecommendation = explainability.ReviewRecommendation.String()
	} else if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("get explainability result for %s: %w", result.ID, err)
	}

	return summary, nil
}
