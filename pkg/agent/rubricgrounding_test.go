package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroundedRubricOutput_Validate_RejectsMissingCriterion(t *testing.T) {
	out := &GroundedRubricOutput{
		GroundingConfidence:  0.9,
		declaredCriterionIDs: map[string]bool{"c1": true, "c2": true},
		Criteria:             []GroundedCriterion{{CriterionID: "c1"}},
	}
	assert.ErrorContains(t, out.Validate(), "missing from grounded rubric")
}

func TestGroundedRubricOutput_Validate_RejectsUnknownCriterion(t *testing.T) {
	out := &GroundedRubricOutput{
		GroundingConfidence:  0.9,
		declaredCriterionIDs: map[string]bool{"c1": true},
		Criteria:             []GroundedCriterion{{CriterionID: "c1"}, {CriterionID: "ghost"}},
	}
	assert.ErrorContains(t, out.Validate(), "not part of this question's rubric")
}

func TestGroundedRubricOutput_Validate_RejectsDuplicateCriterion(t *testing.T) {
	out := &GroundedRubricOutput{
		GroundingConfidence:  0.9,
		declaredCriterionIDs: map[string]bool{"c1": true},
		Criteria:             []GroundedCriterion{{CriterionID: "c1"}, {CriterionID: "c1"}},
	}
	assert.ErrorContains(t, out.Validate(), "more than once")
}

func TestGroundedRubricOutput_Validate_RejectsConfidenceOutOfRange(t *testing.T) {
	out := &GroundedRubricOutput{
		GroundingConfidence:  1.5,
		declaredCriterionIDs: map[string]bool{},
	}
	assert.ErrorContains(t, out.Validate(), "out of [0,1]")
}

func TestGroundedRubricOutput_Validate_AcceptsCompleteGrounding(t *testing.T) {
	out := &GroundedRubricOutput{
		GroundingConfidence:  0.8,
		declaredCriterionIDs: map[string]bool{"c1": true, "c2": true},
		Criteria: []GroundedCriterion{
			{CriterionID: "c1"},
			{CriterionID: "c2"},
		},
	}
	assert.NoError(t, out.Validate())
}
