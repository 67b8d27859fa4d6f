package llmgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion_Parsed(t *testing.T) {
	c := &Completion{Raw: `{"score": 4.5, "justification": "matches rubric"}`}

	var out struct {
		Score         float64 `json:"score"`
		Justification string  `json:"justification"`
	}
	require.NoError(t, c.Parsed(&out))
	assert.Equal(t, 4.5, out.Score)
	assert.Equal(t, "matches rubric", out.Justification)
}

func TestCompletion_Parsed_Malformed(t *testing.T) {
	c := &Completion{Raw: "not json"}

	var out map[string]any
	err := c.Parsed(&out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not conform")
}

func TestRepairPrompt_IncludesParseErrorAndSchema(t *testing.T) {
	prior := PromptPair{System: "You are a grader.", User: "Score this answer."}

	repaired := RepairPrompt(prior, assertError{"unexpected end of JSON input"}, `{"score": number}`, 1)

	assert.Equal(t, prior.System, repaired.System)
	assert.Contains(t, repaired.User, "Score this answer.")
	assert.Contains(t, repaired.User, "unexpected end of JSON input")
	assert.Contains(t, repaired.User, `{"score": number}`)
	assert.Contains(t, repaired.User, "repair attempt 1")
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
