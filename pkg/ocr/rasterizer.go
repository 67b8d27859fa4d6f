package ocr

import (
	"bytes"
	"context"
	"net/http"
)

// pageDelimiter separates pages within a single uploaded object. Exam
// scripts are expected to be submitted as a sequence of page images
// concatenated with this byte, since the standard library has no PDF
// parser to split a real scanned PDF into pages — see DESIGN.md.
const pageDelimiter = 0x0C

// StdlibRasterizer splits an uploaded object into page images using only
// the standard library: it treats the object as one or more page images
// concatenated with a form-feed byte, and classifies each page's MIME type
// via http.DetectContentType. A single-page upload (no delimiter present)
// rasterizes to exactly one page.
type StdlibRasterizer struct{}

// NewStdlibRasterizer returns the standard-library-only PageRasterizer.
func NewStdlibRasterizer() *StdlibRasterizer {
	return &StdlibRasterizer{}
}

// Rasterize splits document on pageDelimiter bytes into one PageImage per
// non-empty chunk, numbered from 1.
func (r *StdlibRasterizer) Rasterize(_ context.Context, document []byte) ([]PageImage, error) {
	chunks := bytes.Split(document, []byte{pageDelimiter})
	pages := make([]PageImage, 0, len(chunks))
	pageNumber := 0
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		pageNumber++
		pages = append(pages, PageImage{
			PageNumber: pageNumber,
			Data:       chunk,
			MimeType:   http.DetectContentType(chunk),
		})
	}
	return pages, nil
}
