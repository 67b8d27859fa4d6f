// Package ocr transcribes a rasterised exam script page into text via the
// LLM Gateway's vision channel. It never performs handwriting recognition
// itself — that is delegated entirely to the vision model.
package ocr

import (
	"context"
	"fmt"

	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
)

// QualityFlag is a closed-vocabulary signal about a page's transcription quality.
type QualityFlag string

const (
	QualityLowContrast QualityFlag = "LOW_CONTRAST"
	QualityBlurry      QualityFlag = "BLURRY"
	QualityPartialScan QualityFlag = "PARTIAL_SCAN"
	QualityUnreadable  QualityFlag = "UNREADABLE"
	QualityClean       QualityFlag = "CLEAN"
)

// PageImage is one rasterised page ready to send to the vision channel.
type PageImage struct {
	PageNumber int
	Data       []byte
	MimeType   string
}

// PageRasterizer splits a document's raw bytes into per-page images. The
// concrete implementation (a PDF rasterizer) is an external collaborator —
// see DESIGN.md for why this seam is left on the standard library rather
// than a third-party PDF library.
type PageRasterizer interface {
	Rasterize(ctx context.Context, document []byte) ([]PageImage, error)
}

// PageResult is one page's transcription outcome.
type PageResult struct {
	PageNumber    int
	ExtractedText string
	Confidence    float64
	QualityFlags  []QualityFlag
}

// ErrPageLimitExceeded signals a document rasterised to more pages than the
// configured limit; the caller should flag the upload rather than process
// a truncated script.
var ErrPageLimitExceeded = fmt.Errorf("%w: page count exceeds configured limit", coreerrors.ErrValidation)

// Provider transcribes document pages via a Gateway's vision channel.
type Provider struct {
	gateway    llmgateway.Gateway
	rasterizer PageRasterizer
	provider   *config.LLMProviderConfig
	pageLimit  int
}

// NewProvider constructs an OCR provider. provider must have SupportsVision set.
func NewProvider(gateway llmgateway.Gateway, rasterizer PageRasterizer, provider *config.LLMProviderConfig, pageLimit int) *Provider {
	return &Provider{gateway: gateway, rasterizer: rasterizer, provider: provider, pageLimit: pageLimit}
}

// Rasterize splits the document into pages, enforcing the configured page limit.
func (p *Provider) Rasterize(ctx context.Context, document []byte) ([]PageImage, error) {
	pages, err := p.rasterizer.Rasterize(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("rasterizing document: %w", err)
	}
	if len(pages) > p.pageLimit {
		return nil, fmt.Errorf("%w: got %d pages, limit %d", ErrPageLimitExceeded, len(pages), p.pageLimit)
	}
	return pages, nil
}

// TranscribePage sends a single page through the vision channel. A
// transcription failure is per-page fatal but never aborts the batch — the
// caller persists the returned UNREADABLE result and moves on to the next
// page, matching spec §4.2's "page-level failures do not abort the batch".
func (p *Provider) TranscribePage(ctx context.Context, runID string, page PageImage) PageResult {
	req := &llmgateway.Request{
		RunID:       runID,
		TaskID:      fmt.Sprintf("ocr_page:%d", page.PageNumber),
		Provider:    p.provider,
		Temperature: 0,
		Messages: []llmgateway.Message{
			{Role: llmgateway.RoleSystem, Content: extractionSystemPrompt},
			{Role: llmgateway.RoleUser, Content: extractionUserPrompt},
		},
		Images: []llmgateway.InlineImage{{Data: page.Data, MimeType: page.MimeType}},
	}

	completion, err := p.gateway.VisionComplete(ctx, req)
	if err != nil {
		return unreadablePage(page.PageNumber)
	}

	var parsed extractionResponse
	if err := completion.Parsed(&parsed); err != nil {
		return unreadablePage(page.PageNumber)
	}

	flags := make([]QualityFlag, 0, len(parsed.QualityFlags))
	for _, f := range parsed.QualityFlags {
		flags = append(flags, QualityFlag(f))
	}
	if len(flags) == 0 {
		flags = []QualityFlag{QualityClean}
	}

	return PageResult{
		PageNumber:    page.PageNumber,
		ExtractedText: parsed.ExtractedText,
		Confidence:    parsed.Confidence,
		QualityFlags:  flags,
	}
}

func unreadablePage(pageNumber int) PageResult {
	return PageResult{
		PageNumber:    pageNumber,
		ExtractedText: "",
		Confidence:    0,
		QualityFlags:  []QualityFlag{QualityUnreadable},
	}
}

type extractionResponse struct {
	ExtractedText string   `json:"extracted_text"`
	Confidence    float64  `json:"confidence"`
	QualityFlags  []string `json:"quality_flags"`
}
