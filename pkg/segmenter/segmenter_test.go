package segmenter

import (
	"context"
	"testing"

	"github.com/gradeflow/gradeflow/pkg/llmgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGateway struct {
	responses []string
	calls     int
}

func (g *scriptedGateway) TextComplete(context.Context, *llmgateway.Request) (*llmgateway.Completion, error) {
	raw := g.responses[g.calls]
	g.calls++
	return &llmgateway.Completion{Raw: raw}, nil
}
func (g *scriptedGateway) VisionComplete(context.Context, *llmgateway.Request) (*llmgateway.Completion, error) {
	panic("not used")
}
func (g *scriptedGateway) Close() error { return nil }

var testQuestions = []QuestionRef{
	{QuestionID: "q1", MaxMarks: 5, PromptText: "Explain photosynthesis."},
	{QuestionID: "q2", MaxMarks: 10, PromptText: "Describe the water cycle."},
}

var testPages = []OCRPage{
	{PageNumber: 1, Text: "Photosynthesis converts light into chemical energy."},
	{PageNumber: 2, Text: "The water cycle includes evaporation and precipitation."},
}

func TestSegmenter_Segment_ValidOnFirstTry(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		`{"segments": [
			{"question_id": "q1", "answer_text": "Photosynthesis converts light into chemical energy."},
			{"question_id": "q2", "answer_text": "The water cycle includes evaporation and precipitation."}
		]}`,
	}}

	s := NewSegmenter(gw, nil, 1)
	draft, err := s.Segment(context.Background(), "run-1", testPages, testQuestions)

	require.NoError(t, err)
	require.Len(t, draft.Segments, 2)
	assert.Equal(t, "q1", draft.Segments[0].QuestionID)
	assert.Equal(t, "q2", draft.Segments[1].QuestionID)
	assert.Equal(t, 1, gw.calls)
}

func TestSegmenter_Segment_RepairsAfterMissingQuestion(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		`{"segments": [{"question_id": "q1", "answer_text": "Photosynthesis converts light into chemical energy."}]}`,
		`{"segments": [
			{"question_id": "q1", "answer_text": "Photosynthesis converts light into chemical energy."},
			{"question_id": "q2", "answer_text": "The water cycle includes evaporation and precipitation."}
		]}`,
	}}

	s := NewSegmenter(gw, nil, 1)
	draft, err := s.Segment(context.Background(), "run-1", testPages, testQuestions)

	require.NoError(t, err)
	require.Len(t, draft.Segments, 2)
	assert.Equal(t, 2, gw.calls)
}

func TestSegmenter_Segment_PersistentFailureIsTerminal(t *testing.T) {
	gw := &scriptedGateway{responses: []string{
		`{"segments": [{"question_id": "q1", "answer_text": "wrong text entirely"}]}`,
		`{"segments": [{"question_id": "q1", "answer_text": "still missing q2"}]}`,
	}}

	s := NewSegmenter(gw, nil, 1)
	_, err := s.Segment(context.Background(), "run-1", testPages, testQuestions)

	require.Error(t, err)
	assert.Equal(t, 2, gw.calls)
}

func TestValidate_RejectsParaphrasedAnswer(t *testing.T) {
	resp := segmentationResponse{Segments: []struct {
		QuestionID string `json:"question_id"`
		AnswerText string `json:"answer_text"`
	}{
		{QuestionID: "q1", AnswerText: "plants turn sunlight into food"},
		{QuestionID: "q2", AnswerText: "The water cycle includes evaporation and precipitation."},
	}}

	_, err := validate(resp, testPages, testQuestions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbatim")
}

func TestValidate_AllowsEmptyAnswerForUnanswered(t *testing.T) {
	resp := segmentationResponse{Segments: []struct {
		QuestionID string `json:"question_id"`
		AnswerText string `json:"answer_text"`
	}{
		{QuestionID: "q1", AnswerText: ""},
		{QuestionID: "q2", AnswerText: "The water cycle includes evaporation and precipitation."},
	}}

	draft, err := validate(resp, testPages, testQuestions)
	require.NoError(t, err)
	assert.Equal(t, "", draft.Segments[0].AnswerText)
}
