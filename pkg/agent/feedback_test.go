package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToneBucket_Thresholds(t *testing.T) {
	assert.Equal(t, "high", ToneBucket(0.75))
	assert.Equal(t, "high", ToneBucket(1.0))
	assert.Equal(t, "medium", ToneBucket(0.4))
	assert.Equal(t, "medium", ToneBucket(0.74))
	assert.Equal(t, "low", ToneBucket(0.39))
	assert.Equal(t, "low", ToneBucket(0))
}

func TestStudentFeedbackOutput_Validate_RejectsEmptySummary(t *testing.T) {
	out := &StudentFeedbackOutput{declaredCriterionIDs: map[string]bool{"c1": true}}
	assert.ErrorContains(t, out.Validate(), "summary")
}

func TestStudentFeedbackOutput_Validate_RejectsUnknownCriterionInImprovement(t *testing.T) {
	out := &StudentFeedbackOutput{
		Summary:              "Good attempt overall.",
		declaredCriterionIDs: map[string]bool{"c1": true},
		Improvements:         []FeedbackImprovement{{CriterionID: "ghost"}},
	}
	assert.ErrorContains(t, out.Validate(), "unknown criterion")
}

func TestStudentFeedbackOutput_Validate_AcceptsValidFeedback(t *testing.T) {
	out := &StudentFeedbackOutput{
		Summary:              "Good attempt overall.",
		declaredCriterionIDs: map[string]bool{"c1": true},
		Improvements:         []FeedbackImprovement{{CriterionID: "c1"}},
	}
	assert.NoError(t, out.Validate())
}
