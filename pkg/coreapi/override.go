package coreapi

import (
	"context"
	"fmt"
	"math"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/evaluationresult"
	"github.com/gradeflow/gradeflow/pkg/models"
)

// OverrideService implements spec.md §4.7's apply_override operation.
type OverrideService struct {
	client *ent.Client
}

// NewOverrideService returns an OverrideService backed by client.
func NewOverrideService(client *ent.Client) *OverrideService {
	return &OverrideService{client: client}
}

// Override sets reviewer_override, recomputes percentage from the
// override score, preserves every sub-agent edge verbatim, and
// transitions the EvaluationResult to overridden. The percentage it
// replaces is retained as prior_percentage.
func (s *OverrideService) Override(ctx context.Context, req models.OverrideRequest) error {
	result, err := s.client.EvaluationResult.Get(ctx, req.EvaluationResultID)
	if err != nil {
		return fmt.Errorf("get evaluation result %s: %w", req.EvaluationResultID, err)
	}
	question, err := s.client.Question.Get(ctx, result.QuestionID)
	if err != nil {
		return fmt.Errorf("get question %s: %w", result.QuestionID, err)
	}

	percentage := 0.0
	if question.MaxMarks > 0 {
		percentage = math.Round(100*req.TotalScore/question.MaxMarks*10) / 10
	}

	update := s.client.EvaluationResult.UpdateOneID(req.EvaluationResultID).
		SetReviewerOverride(true).
		SetTotalScore(req.TotalScore).
		SetPercentage(percentage).
		SetStatus(evaluationresult.StatusOverridden)
	if result.Percentage != nil {
		update = update.SetPriorPercentage(*result.Percentage)
	}
	if err := update.Exec(ctx); err != nil {
		return fmt.Errorf("apply override to %s: %w", req.EvaluationResultID, err)
	}
	return nil
}
