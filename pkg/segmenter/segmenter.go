// Package segmenter turns a document's OCR'd page text into an ordered,
// per-question answer split, grounded in the exam's declared question set.
package segmenter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
)

// OCRPage is one page's transcribed text, keyed by page number so the
// segmenter can present pages to the model in order regardless of the
// order OCR tasks completed in (spec §5: "aggregation sees pages sorted
// by page number").
type OCRPage struct {
	PageNumber int
	Text       string
}

// QuestionRef is the minimal shape of a question the segmenter needs: just
// enough to constrain which ids the model is allowed to use.
type QuestionRef struct {
	QuestionID string
	MaxMarks   float64
	PromptText string
}

// AnswerSegment is one (question-id, answer-text) pair.
type AnswerSegment struct {
	QuestionID string
	AnswerText string
}

// ScriptDraft is the segmenter's output: one segment per declared question,
// in declared order, each present exactly once even if the answer is empty.
type ScriptDraft struct {
	Segments []AnswerSegment
}

// Segmenter asks the LLM Gateway's text channel to split OCR'd page text
// into per-question answers, then validates the result and repairs once on
// failure before giving up (grounded on the same retry-then-flag pattern
// as the scoring agent's repair loop).
type Segmenter struct {
	gateway           llmgateway.Gateway
	provider          *config.LLMProviderConfig
	maxRepairAttempts int
}

// NewSegmenter constructs a Segmenter.
func NewSegmenter(gateway llmgateway.Gateway, provider *config.LLMProviderConfig, maxRepairAttempts int) *Segmenter {
	return &Segmenter{gateway: gateway, provider: provider, maxRepairAttempts: maxRepairAttempts}
}

// Segment produces the per-question answer split for one script.
func (s *Segmenter) Segment(ctx context.Context, runID string, pages []OCRPage, questions []QuestionRef) (*ScriptDraft, error) {
	sorted := make([]OCRPage, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PageNumber < sorted[j].PageNumber })

	prompt := PromptPair{
		System: segmentationSystemPrompt,
		User:   buildSegmentationUserPrompt(sorted, questions),
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRepairAttempts; attempt++ {
		req := &llmgateway.Request{
			RunID:       runID,
			TaskID:      "segment",
			Provider:    s.provider,
			Temperature: 0,
			Messages: []llmgateway.Message{
				{Role: llmgateway.RoleSystem, Content: prompt.System},
				{Role: llmgateway.RoleUser, Content: prompt.User},
			},
		}

		completion, err := s.gateway.TextComplete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", coreerrors.ErrSegmentationFailed, err)
		}

		var parsed segmentationResponse
		if err := completion.Parsed(&parsed); err != nil {
			lastErr = err
			prompt = PromptPair{System: prompt.System, User: buildRepairPrompt(prompt.User, err, attempt+1)}
			continue
		}

		draft, err := validate(parsed, sorted, questions)
		if err != nil {
			lastErr = err
			prompt = PromptPair{System: prompt.System, User: buildRepairPrompt(prompt.User, err, attempt+1)}
			continue
		}

		return draft, nil
	}

	return nil, fmt.Errorf("%w: %v", coreerrors.ErrSegmentationFailed, lastErr)
}

// PromptPair mirrors llmgateway.PromptPair locally so this package does not
// need to import llmgateway's repair internals for a two-field struct.
type PromptPair struct {
	System string
	User   string
}

func buildRepairPrompt(priorUser string, validationErr error, attempt int) string {
	return fmt.Sprintf(
		"%s\n\nYour previous response was rejected: %v\n\n"+
			"Respond again, using ONLY the question-ids listed above, including "+
			"every one exactly once, and quoting answer text verbatim from the "+
			"page text. (repair attempt %d)",
		priorUser, validationErr, attempt,
	)
}

func buildSegmentationUserPrompt(pages []OCRPage, questions []QuestionRef) string {
	var b strings.Builder
	b.WriteString("The exam has the following questions:\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "- %s (max marks %.2f): %s\n", q.QuestionID, q.MaxMarks, q.PromptText)
	}
	b.WriteString("\nThe scanned script text, by page:\n")
	for _, p := range pages {
		fmt.Fprintf(&b, "\n--- page %d ---\n%s\n", p.PageNumber, p.Text)
	}
	b.WriteString("\nSplit this into one answer per question-id listed above. " +
		"Use only those question-ids, include every one exactly once (use an " +
		"empty string if the student left it unanswered), and quote answer " +
		"text verbatim — do not paraphrase or correct it.\n\n" +
		`Respond with a JSON object: {"segments": [{"question_id": "...", "answer_text": "..."}]}`)
	return b.String()
}

type segmentationResponse struct {
	Segments []struct {
		QuestionID string `json:"question_id"`
		AnswerText string `json:"answer_text"`
	} `json:"segments"`
}
