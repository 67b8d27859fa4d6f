// Package llmgateway is the single seam through which the evaluation core
// talks to a language model. Every agent (segmenter, rubric grounding,
// scoring, consistency, feedback, explainability) calls through a Gateway;
// none of them import a provider SDK or know whether the model is reached
// over gRPC, HTTP, or in-process.
package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
)

// Gateway is the whole-object completion contract. Unlike the teacher's
// streaming Chunk channel, callers here need one parseable response, not
// partial tokens — every consumer immediately json.Unmarshals the result
// into a typed struct.
type Gateway interface {
	// TextComplete renders a text-only prompt and returns the model's answer.
	TextComplete(ctx context.Context, req *Request) (*Completion, error)

	// VisionComplete attaches page images to the prompt, for OCR transcription.
	VisionComplete(ctx context.Context, req *Request) (*Completion, error)

	Close() error
}

// Request is the input to a single completion call.
type Request struct {
	RunID       string
	TaskID      string
	Provider    *config.LLMProviderConfig
	Messages    []Message
	Images      []InlineImage
	Temperature float64
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string // RoleSystem, RoleUser, RoleAssistant
	Content string
}

// Conversation message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// InlineImage is a single rasterized page sent with a vision request.
type InlineImage struct {
	Data     []byte
	MimeType string
}

// Completion is the model's response to one Request.
type Completion struct {
	Raw   string
	Usage TokenUsage
}

// TokenUsage mirrors the teacher's UsageChunk, collapsed to a single value
// since this gateway has no streaming phase to report partial usage during.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Parsed unmarshals the completion's raw text as JSON into v. Agents call
// this after TextComplete/VisionComplete rather than parsing ad hoc, so a
// malformed response surfaces uniformly as coreerrors.ErrLLMMalformed.
func (c *Completion) Parsed(v any) error {
	if err := json.Unmarshal([]byte(c.Raw), v); err != nil {
		return fmt.Errorf("%w: %v", coreerrors.ErrLLMMalformed, err)
	}
	return nil
}
