package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/llmgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	completion *llmgateway.Completion
	err        error
}

func (f *fakeGateway) TextComplete(context.Context, *llmgateway.Request) (*llmgateway.Completion, error) {
	return f.completion, f.err
}
func (f *fakeGateway) VisionComplete(context.Context, *llmgateway.Request) (*llmgateway.Completion, error) {
	return f.completion, f.err
}
func (f *fakeGateway) Close() error { return nil }

type fakeRasterizer struct {
	pages []PageImage
	err   error
}

func (f *fakeRasterizer) Rasterize(context.Context, []byte) ([]PageImage, error) {
	return f.pages, f.err
}

func TestProvider_TranscribePage_Success(t *testing.T) {
	gw := &fakeGateway{completion: &llmgateway.Completion{
		Raw: `{"extracted_text": "Photosynthesis converts light to energy.", "confidence": 0.92, "quality_flags": []}`,
	}}
	p := NewProvider(gw, &fakeRasterizer{}, &config.LLMProviderConfig{SupportsVision: true}, 40)

	result := p.TranscribePage(context.Background(), "run-1", PageImage{PageNumber: 1, Data: []byte("img"), MimeType: "image/png"})

	assert.Equal(t, 1, result.PageNumber)
	assert.Equal(t, "Photosynthesis converts light to energy.", result.ExtractedText)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, []QualityFlag{QualityClean}, result.QualityFlags)
}

func TestProvider_TranscribePage_GatewayFailureIsUnreadable(t *testing.T) {
	gw := &fakeGateway{err: errors.New("llm unavailable")}
	p := NewProvider(gw, &fakeRasterizer{}, &config.LLMProviderConfig{SupportsVision: true}, 40)

	result := p.TranscribePage(context.Background(), "run-1", PageImage{PageNumber: 3})

	assert.Equal(t, 3, result.PageNumber)
	assert.Equal(t, "", result.ExtractedText)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, []QualityFlag{QualityUnreadable}, result.QualityFlags)
}

func TestProvider_TranscribePage_MalformedResponseIsUnreadable(t *testing.T) {
	gw := &fakeGateway{completion: &llmgateway.Completion{Raw: "not json"}}
	p := NewProvider(gw, &fakeRasterizer{}, &config.LLMProviderConfig{SupportsVision: true}, 40)

	result := p.TranscribePage(context.Background(), "run-1", PageImage{PageNumber: 2})

	assert.Equal(t, []QualityFlag{QualityUnreadable}, result.QualityFlags)
}

func TestProvider_Rasterize_PageLimitExceeded(t *testing.T) {
	pages := make([]PageImage, 41)
	for i := range pages {
		pages[i] = PageImage{PageNumber: i + 1}
	}
	p := NewProvider(&fakeGateway{}, &fakeRasterizer{pages: pages}, &config.LLMProviderConfig{}, 40)

	_, err := p.Rasterize(context.Background(), []byte("doc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageLimitExceeded)
}

func TestProvider_Rasterize_WithinLimit(t *testing.T) {
	pages := []PageImage{{PageNumber: 1}, {PageNumber: 2}}
	p := NewProvider(&fakeGateway{}, &fakeRasterizer{pages: pages}, &config.LLMProviderConfig{}, 40)

	got, err := p.Rasterize(context.Background(), []byte("doc"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
