package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriterionScoreOutput_Validate_RejectsNonQuarterMarks(t *testing.T) {
	out := &CriterionScoreOutput{
		CriterionID:  "c1",
		MarksAwarded: 1.1,
		Confidence:   0.8,
	}
	out.expectedID = "c1"
	out.maxMarks = 5
	out.answerText = "photosynthesis converts light"

	err := out.Validate()
	assert.ErrorContains(t, err, "multiple of 0.25")
}

func TestCriterionScoreOutput_Validate_RejectsParaphrasedQuote(t *testing.T) {
	out := &CriterionScoreOutput{
		CriterionID:  "c1",
		MarksAwarded: 2.5,
		Quote:        "plants make food from sunlight",
		Confidence:   0.8,
	}
	out.expectedID = "c1"
	out.maxMarks = 5
	out.answerText = "photosynthesis converts light into chemical energy"

	err := out.Validate()
	assert.ErrorContains(t, err, "verbatim")
}

func TestCriterionScoreOutput_Validate_AcceptsVerbatimQuoteWithinBounds(t *testing.T) {
	out := &CriterionScoreOutput{
		CriterionID:  "c1",
		MarksAwarded: 2.75,
		Quote:        "converts light",
		Confidence:   0.9,
	}
	out.expectedID = "c1"
	out.maxMarks = 5
	out.answerText = "photosynthesis converts light into chemical energy"

	assert.NoError(t, out.Validate())
}

func TestCriterionScoreOutput_Validate_RejectsMismatchedCriterionID(t *testing.T) {
	out := &CriterionScoreOutput{CriterionID: "wrong"}
	out.expectedID = "c1"

	assert.ErrorContains(t, out.Validate(), "does not match")
}

func TestCriterionScoreOutput_DisplayQuote_TruncatesAt250(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	out := &CriterionScoreOutput{Quote: string(long)}
	assert.Len(t, out.DisplayQuote(), 250)
}
