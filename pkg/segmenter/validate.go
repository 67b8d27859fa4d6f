package segmenter

import (
	"fmt"
	"sort"
	"strings"
)

// validate enforces spec §4.3's post-validation constraints: every declared
// question-id appears exactly once, no unknown question-ids are used, and
// every non-empty answer is a verbatim substring of the concatenated page
// text (no paraphrase).
func validate(resp segmentationResponse, pages []OCRPage, questions []QuestionRef) (*ScriptDraft, error) {
	var combinedText strings.Builder
	for _, p := range pages {
		combinedText.WriteString(p.Text)
		combinedText.WriteString("\n")
	}
	fullText := combinedText.String()

	declared := make(map[string]bool, len(questions))
	for _, q := range questions {
		declared[q.QuestionID] = true
	}

	seen := make(map[string]bool, len(resp.Segments))
	segments := make([]AnswerSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if !declared[s.QuestionID] {
			return nil, fmt.Errorf("unknown question-id %q not in the declared exam", s.QuestionID)
		}
		if seen[s.QuestionID] {
			return nil, fmt.Errorf("question-id %q appears more than once", s.QuestionID)
		}
		seen[s.QuestionID] = true

		if s.AnswerText != "" && !strings.Contains(fullText, s.AnswerText) {
			return nil, fmt.Errorf("answer for %q is not a verbatim quote from the OCR'd page text", s.QuestionID)
		}

		segments = append(segments, AnswerSegment{QuestionID: s.QuestionID, AnswerText: s.AnswerText})
	}

	for _, q := range questions {
		if !seen[q.QuestionID] {
			return nil, fmt.Errorf("missing required question-id %q", q.QuestionID)
		}
	}

	order := make(map[string]int, len(questions))
	for i, q := range questions {
		order[q.QuestionID] = i
	}
	ordered := make([]AnswerSegment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool {
		return order[ordered[i].QuestionID] < order[ordered[j].QuestionID]
	})

	return &ScriptDraft{Segments: ordered}, nil
}
